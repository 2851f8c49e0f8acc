package lobby

import (
	"time"

	"github.com/google/uuid"
)

// State of a lobby's lifecycle. StateClosed is terminal: the lobby is gone
// from the manager's maps, and the marker makes sure a caller that grabbed
// the lobby pointer before destruction cannot mutate it afterwards.
type State int

const (
	StateOpen State = iota
	StateStarting
	StateClosed
)

// Identity is the authenticated player acting on a lobby.
type Identity struct {
	UUID        uuid.UUID `json:"uuid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

// Member is a lobby member in insertion order. The join time drives
// ownership transfer: the longest-standing member inherits the lobby.
type Member struct {
	Identity
	JoinedAt time.Time `json:"joined_at"`
}

// Lobby is the in-memory waiting room. Lobbies are a live-session concept:
// they are never persisted and are rebuilt empty on process restart.
type Lobby struct {
	UUID         uuid.UUID
	Name         string
	MaxPlayers   int
	OwnerUUID    uuid.UUID
	ChatRoomUUID uuid.UUID
	CreatedAt    time.Time

	passwordHash string // empty when the lobby has no password
	state        State
	members      []Member
}

// Info is the snapshot of a lobby that is sent to clients, both as REST
// responses and as the payload of room broadcasts.
type Info struct {
	UUID           uuid.UUID `json:"uuid"`
	Name           string    `json:"name"`
	MaxPlayers     int       `json:"max_players"`
	CurrentPlayers int       `json:"current_players"`
	Password       bool      `json:"password"`
	Owner          Identity  `json:"owner"`
	Members        []Member  `json:"members"`
	ChatRoomUUID   uuid.UUID `json:"chat_room_uuid"`
	CreatedAt      time.Time `json:"created_at"`
}

func (l *Lobby) snapshot() Info {
	members := make([]Member, len(l.members))
	copy(members, l.members)
	var owner Identity
	for _, m := range l.members {
		if m.UUID == l.OwnerUUID {
			owner = m.Identity
			break
		}
	}
	return Info{
		UUID:           l.UUID,
		Name:           l.Name,
		MaxPlayers:     l.MaxPlayers,
		CurrentPlayers: len(l.members),
		Password:       l.passwordHash != "",
		Owner:          owner,
		Members:        members,
		ChatRoomUUID:   l.ChatRoomUUID,
		CreatedAt:      l.CreatedAt,
	}
}

func (l *Lobby) memberIndex(identity uuid.UUID) int {
	for i, m := range l.members {
		if m.UUID == identity {
			return i
		}
	}
	return -1
}
