package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
 * 'Invite' represents a pending offer for one account to join a specific
 * lobby. At most one outstanding invite may exist per (from, to, lobby).
 * The lobby itself is a live-session entity, so only its uuid is stored.
 */
type Invite struct {
	UUID      uuid.UUID `gorm:"primaryKey;type:uuid"`
	FromUUID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invites_triple"`
	ToUUID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invites_triple;index:idx_invites_to"`
	LobbyUUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invites_triple"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	// Relationships
	From Account `gorm:"foreignKey:FromUUID;constraint:OnDelete:CASCADE"`
	To   Account `gorm:"foreignKey:ToUUID;constraint:OnDelete:CASCADE"`
}

func (i *Invite) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == uuid.Nil {
		i.UUID = uuid.New()
	}
	return nil
}
