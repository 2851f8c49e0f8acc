package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
 * 'Account' contains the blueprint definition of a player account. It is
 * referenced by Friend, Invite, ChatRoomMember, ChatRoomMessage, Game and
 * GameMember
 */
type Account struct {
	UUID         uuid.UUID      `gorm:"primaryKey;type:uuid"`
	Username     string         `gorm:"size:50;not null;uniqueIndex"`
	DisplayName  string         `gorm:"size:100;not null"`
	PasswordHash string         `gorm:"size:255;not null"`
	Stats        datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
	CreatedAt    time.Time      `gorm:"default:CURRENT_TIMESTAMP"`
	LastLogin    *time.Time
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}
