package postgres

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
 * 'Friend' represents a friendship between two accounts. While IsRequest is
 * true the row is a pending friend request; accepting it flips the flag and
 * attaches the pair's private chat room.
 */
type Friend struct {
	UUID         uuid.UUID  `gorm:"primaryKey;type:uuid"`
	FromUUID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_friends_from"`
	ToUUID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_friends_to"`
	IsRequest    bool       `gorm:"default:true"`
	ChatRoomUUID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time  `gorm:"default:CURRENT_TIMESTAMP"`

	// Relationships
	From     Account   `gorm:"foreignKey:FromUUID;constraint:OnDelete:CASCADE"`
	To       Account   `gorm:"foreignKey:ToUUID;constraint:OnDelete:CASCADE"`
	ChatRoom *ChatRoom `gorm:"foreignKey:ChatRoomUUID"`
}

// GORM hook to ensure that both account uuids are different
func (f *Friend) BeforeSave(tx *gorm.DB) error {
	if f.FromUUID == f.ToUUID {
		return errors.New("cannot create a friendship with yourself")
	}
	return nil
}

func (f *Friend) BeforeCreate(tx *gorm.DB) error {
	if f.UUID == uuid.Nil {
		f.UUID = uuid.New()
	}
	return nil
}
