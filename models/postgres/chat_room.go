package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Upper bound on the length of a single chat message body.
const MaxMessageLength = 2048

/*
 * 'ChatRoom' is an ordered message channel shared by a lobby's members, a
 * game's players or a pair of friends. LastMessageUUID is a cache of the
 * most recent message, not the authoritative ordering.
 */
type ChatRoom struct {
	UUID            uuid.UUID  `gorm:"primaryKey;type:uuid"`
	LastMessageUUID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP"`

	// Relationships
	Members  []ChatRoomMember  `gorm:"foreignKey:ChatRoomUUID;constraint:OnDelete:CASCADE"`
	Messages []ChatRoomMessage `gorm:"foreignKey:ChatRoomUUID;constraint:OnDelete:CASCADE"`
}

func (c *ChatRoom) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	return nil
}

/*
 * 'ChatRoomMember' is the (chat room, account) relation. It determines who
 * receives fan-out events and who may fetch the room's history.
 */
type ChatRoomMember struct {
	UUID         uuid.UUID `gorm:"primaryKey;type:uuid"`
	ChatRoomUUID uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_members_room"`
	MemberUUID   uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_members_member"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	// Relationships
	ChatRoom ChatRoom `gorm:"foreignKey:ChatRoomUUID;constraint:OnDelete:CASCADE"`
	Member   Account  `gorm:"foreignKey:MemberUUID;constraint:OnDelete:CASCADE"`
}

func (m *ChatRoomMember) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	return nil
}

/*
 * 'ChatRoomMessage' is a single immutable message. Ordering is the
 * creation-time total order per room, ties broken by uuid.
 */
type ChatRoomMessage struct {
	UUID         uuid.UUID `gorm:"primaryKey;type:uuid"`
	ChatRoomUUID uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_messages_room"`
	SenderUUID   uuid.UUID `gorm:"type:uuid;not null"`
	Message      string    `gorm:"size:2048;not null"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	// Relationships
	ChatRoom ChatRoom `gorm:"foreignKey:ChatRoomUUID;constraint:OnDelete:CASCADE"`
	Sender   Account  `gorm:"foreignKey:SenderUUID;constraint:OnDelete:CASCADE"`
}

func (m *ChatRoomMessage) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	return nil
}
