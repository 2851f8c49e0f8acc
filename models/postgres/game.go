package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Upper bound on the size of an uploaded game state blob (10 MiB).
const MaxGameDataSize = 10 << 20

/*
 * 'Game' is created exactly once when a lobby is started. DataID is a
 * monotonic version counter for the opaque state blob, incremented by
 * exactly 1 per accepted upload, so clients can cheaply detect a newer
 * turn without transferring the payload.
 */
type Game struct {
	UUID          uuid.UUID `gorm:"primaryKey;type:uuid"`
	DataID        int64     `gorm:"default:0"`
	Name          string    `gorm:"size:255;not null"`
	MaxPlayers    int       `gorm:"not null"`
	Data          []byte    `gorm:"type:bytea"`
	ChatRoomUUID  uuid.UUID `gorm:"type:uuid;not null"`
	UpdatedByUUID uuid.UUID `gorm:"type:uuid;not null"`
	UpdatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	// Relationships
	ChatRoom  ChatRoom      `gorm:"foreignKey:ChatRoomUUID"`
	UpdatedBy Account       `gorm:"foreignKey:UpdatedByUUID"`
	Members   []*GameMember `gorm:"foreignKey:GameUUID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.UUID == uuid.Nil {
		g.UUID = uuid.New()
	}
	return nil
}

/*
 * 'GameMember' is the (game, account) relation, fixed at creation from the
 * lobby's membership at start time. Mid-game joins and leaves are not
 * modelled.
 */
type GameMember struct {
	UUID       uuid.UUID `gorm:"primaryKey;type:uuid"`
	GameUUID   uuid.UUID `gorm:"type:uuid;not null;index:idx_game_members_game"`
	PlayerUUID uuid.UUID `gorm:"type:uuid;not null;index:idx_game_members_player"`

	// Relationships
	Game   Game    `gorm:"foreignKey:GameUUID;constraint:OnDelete:CASCADE"`
	Player Account `gorm:"foreignKey:PlayerUUID;constraint:OnDelete:CASCADE"`
}

func (m *GameMember) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	return nil
}
