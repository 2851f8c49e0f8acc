package chat

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	models "Tavern/models/postgres"
	"Tavern/services/apierror"
	"Tavern/services/hub"
	"Tavern/services/redis"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageInfo is a chat message as sent to clients, both in history
// responses and as live fan-out payload.
type MessageInfo struct {
	UUID      uuid.UUID `json:"uuid"`
	Sender    Sender    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Sender struct {
	UUID        uuid.UUID `json:"uuid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

// MemberInfo is a chat room member with its join time.
type MemberInfo struct {
	UUID        uuid.UUID `json:"uuid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// storage is the persistence behind the relay. gormStorage is the
// production implementation; a missing row surfaces as
// gorm.ErrRecordNotFound.
type storage interface {
	createRoom(roomUUID uuid.UUID, members []uuid.UUID) error
	deleteRoom(roomUUID uuid.UUID) error
	addMember(roomUUID, member uuid.UUID) error
	removeMember(roomUUID, member uuid.UUID) error
	isMember(roomUUID, member uuid.UUID) (bool, error)
	roomExists(roomUUID uuid.UUID) (bool, error)
	appendMessage(msg *models.ChatRoomMessage) error
	message(roomUUID, messageUUID uuid.UUID) (*models.ChatRoomMessage, error)
	members(roomUUID uuid.UUID) ([]models.ChatRoomMember, error)
	messagesAfter(roomUUID uuid.UUID, after *models.ChatRoomMessage) ([]models.ChatRoomMessage, error)
	friendRooms(account uuid.UUID) ([]uuid.UUID, error)
	gameRooms(account uuid.UUID) ([]uuid.UUID, error)
	memberRooms(account uuid.UUID) ([]uuid.UUID, error)
}

// Relay is the append-only ordered message log per chat room with
// persisted history and live fan-out. Sends on the same room are
// serialized so that fan-out order equals commit order; history is
// restartable and has no cursor state of its own.
type Relay struct {
	storage storage
	rdb     *redis.RedisClient
	hub     *hub.Hub

	mu    sync.Mutex
	rooms map[uuid.UUID]*sync.Mutex
}

func NewRelay(db *gorm.DB, rdb *redis.RedisClient, h *hub.Hub) *Relay {
	return newRelay(&gormStorage{db: db}, rdb, h)
}

func newRelay(s storage, rdb *redis.RedisClient, h *hub.Hub) *Relay {
	return &Relay{
		storage: s,
		rdb:     rdb,
		hub:     h,
		rooms:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *Relay) roomLock(roomUUID uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rooms[roomUUID]
	if !ok {
		l = &sync.Mutex{}
		r.rooms[roomUUID] = l
	}
	return l
}

// CreateRoom creates a chat room together with its initial members.
func (r *Relay) CreateRoom(members ...uuid.UUID) (uuid.UUID, error) {
	roomUUID := uuid.New()
	if err := r.storage.createRoom(roomUUID, members); err != nil {
		return uuid.Nil, err
	}
	return roomUUID, nil
}

// DeleteRoom removes a chat room and, via cascade, its members and
// messages.
func (r *Relay) DeleteRoom(roomUUID uuid.UUID) error {
	if err := r.storage.deleteRoom(roomUUID); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.rooms, roomUUID)
	r.mu.Unlock()
	if r.rdb != nil {
		r.rdb.CleanupKeys([]string{"chat:" + roomUUID.String() + ":last_message"})
	}
	return nil
}

// AddMember makes an account a member of a chat room. Adding an existing
// member is a no-op.
func (r *Relay) AddMember(roomUUID, member uuid.UUID) error {
	isMember, err := r.storage.isMember(roomUUID, member)
	if err != nil {
		return err
	}
	if isMember {
		return nil
	}
	return r.storage.addMember(roomUUID, member)
}

// RemoveMember removes an account from a chat room.
func (r *Relay) RemoveMember(roomUUID, member uuid.UUID) error {
	return r.storage.removeMember(roomUUID, member)
}

// IsMember reports whether an account is a member of a chat room.
func (r *Relay) IsMember(roomUUID, account uuid.UUID) (bool, error) {
	return r.storage.isMember(roomUUID, account)
}

// Send persists a message, advances the room's last-message pointer and
// publishes it to the room's live subscribers. The sender must be a
// current member of the room.
func (r *Relay) Send(roomUUID uuid.UUID, sender *models.Account, body string) (MessageInfo, *apierror.ApiError) {
	if strings.TrimSpace(body) == "" || len(body) > models.MaxMessageLength {
		return MessageInfo{}, apierror.Of(apierror.InvalidMessage)
	}

	isMember, err := r.storage.isMember(roomUUID, sender.UUID)
	if err != nil {
		log.Printf("[CHAT-ERROR] membership check: %v", err)
		return MessageInfo{}, apierror.Of(apierror.DatabaseError)
	}
	if !isMember {
		return MessageInfo{}, apierror.Of(apierror.MissingPrivileges)
	}

	lock := r.roomLock(roomUUID)
	lock.Lock()
	defer lock.Unlock()

	msg := models.ChatRoomMessage{
		UUID:         uuid.New(),
		ChatRoomUUID: roomUUID,
		SenderUUID:   sender.UUID,
		Message:      body,
		CreatedAt:    time.Now(),
	}
	if err := r.storage.appendMessage(&msg); err != nil {
		log.Printf("[CHAT-ERROR] persisting message: %v", err)
		return MessageInfo{}, apierror.Of(apierror.DatabaseError)
	}

	// Cache update is best-effort, postgres stays authoritative.
	if r.rdb != nil {
		if err := r.rdb.SetLastMessage(roomUUID, msg.UUID); err != nil {
			log.Printf("[CHAT] last-message cache update failed: %v", err)
		}
	}

	info := MessageInfo{
		UUID: msg.UUID,
		Sender: Sender{
			UUID:        sender.UUID,
			Username:    sender.Username,
			DisplayName: sender.DisplayName,
		},
		Message:   body,
		CreatedAt: msg.CreatedAt,
	}
	r.hub.Publish(roomUUID.String(), hub.EventChatMessage, map[string]any{
		"chat_room_uuid": roomUUID,
		"message":        info,
	})
	return info, nil
}

// History returns the members of a room and its messages in creation
// order, ties broken by uuid. With sinceUUID set only messages after that
// message are returned; the since message must belong to the room.
// Repeated calls with the same sinceUUID return the same prefix-stable
// sequence.
func (r *Relay) History(roomUUID uuid.UUID, caller uuid.UUID, sinceUUID *uuid.UUID) ([]MemberInfo, []MessageInfo, *apierror.ApiError) {
	exists, err := r.storage.roomExists(roomUUID)
	if err != nil {
		return nil, nil, apierror.Of(apierror.DatabaseError)
	}
	if !exists {
		return nil, nil, apierror.Of(apierror.InvalidUuid)
	}

	isMember, err := r.storage.isMember(roomUUID, caller)
	if err != nil {
		return nil, nil, apierror.Of(apierror.DatabaseError)
	}
	if !isMember {
		return nil, nil, apierror.Of(apierror.MissingPrivileges)
	}

	var since *models.ChatRoomMessage
	if sinceUUID != nil {
		since, err = r.storage.message(roomUUID, *sinceUUID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, apierror.Of(apierror.InvalidUuid)
			}
			return nil, nil, apierror.Of(apierror.DatabaseError)
		}
	}

	memberRows, err := r.storage.members(roomUUID)
	if err != nil {
		return nil, nil, apierror.Of(apierror.DatabaseError)
	}
	messageRows, err := r.storage.messagesAfter(roomUUID, since)
	if err != nil {
		return nil, nil, apierror.Of(apierror.DatabaseError)
	}

	members := make([]MemberInfo, len(memberRows))
	for i, m := range memberRows {
		members[i] = MemberInfo{
			UUID:        m.MemberUUID,
			Username:    m.Member.Username,
			DisplayName: m.Member.DisplayName,
			JoinedAt:    m.CreatedAt,
		}
	}
	messages := make([]MessageInfo, len(messageRows))
	for i, msg := range messageRows {
		messages[i] = MessageInfo{
			UUID: msg.UUID,
			Sender: Sender{
				UUID:        msg.SenderUUID,
				Username:    msg.Sender.Username,
				DisplayName: msg.Sender.DisplayName,
			},
			Message:   msg.Message,
			CreatedAt: msg.CreatedAt,
		}
	}
	return members, messages, nil
}

// FriendRooms returns the private chat rooms of the caller's accepted
// friendships.
func (r *Relay) FriendRooms(caller uuid.UUID) ([]uuid.UUID, error) {
	return r.storage.friendRooms(caller)
}

// GameRooms returns the chat rooms of the games the caller plays in.
func (r *Relay) GameRooms(caller uuid.UUID) ([]uuid.UUID, error) {
	return r.storage.gameRooms(caller)
}

// MemberRooms returns every chat room the account is currently a member
// of. Used to resubscribe a fresh socket connection.
func (r *Relay) MemberRooms(account uuid.UUID) ([]uuid.UUID, error) {
	return r.storage.memberRooms(account)
}

// gormStorage is the postgres-backed message log.
type gormStorage struct {
	db *gorm.DB
}

func (s *gormStorage) createRoom(roomUUID uuid.UUID, members []uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		room := models.ChatRoom{UUID: roomUUID}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		for _, m := range members {
			member := models.ChatRoomMember{ChatRoomUUID: roomUUID, MemberUUID: m}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *gormStorage) deleteRoom(roomUUID uuid.UUID) error {
	return s.db.Delete(&models.ChatRoom{}, "uuid = ?", roomUUID).Error
}

func (s *gormStorage) addMember(roomUUID, member uuid.UUID) error {
	row := models.ChatRoomMember{ChatRoomUUID: roomUUID, MemberUUID: member}
	return s.db.Create(&row).Error
}

func (s *gormStorage) removeMember(roomUUID, member uuid.UUID) error {
	return s.db.
		Where("chat_room_uuid = ? AND member_uuid = ?", roomUUID, member).
		Delete(&models.ChatRoomMember{}).Error
}

func (s *gormStorage) isMember(roomUUID, member uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&models.ChatRoomMember{}).
		Where("chat_room_uuid = ? AND member_uuid = ?", roomUUID, member).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStorage) roomExists(roomUUID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&models.ChatRoom{}).
		Where("uuid = ?", roomUUID).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStorage) appendMessage(msg *models.ChatRoomMessage) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatRoom{}).
			Where("uuid = ?", msg.ChatRoomUUID).
			Update("last_message_uuid", msg.UUID).Error
	})
}

func (s *gormStorage) message(roomUUID, messageUUID uuid.UUID) (*models.ChatRoomMessage, error) {
	var msg models.ChatRoomMessage
	err := s.db.
		First(&msg, "uuid = ? AND chat_room_uuid = ?", messageUUID, roomUUID).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *gormStorage) members(roomUUID uuid.UUID) ([]models.ChatRoomMember, error) {
	var rows []models.ChatRoomMember
	err := s.db.Preload("Member").
		Where("chat_room_uuid = ?", roomUUID).
		Find(&rows).Error
	return rows, err
}

func (s *gormStorage) messagesAfter(roomUUID uuid.UUID, after *models.ChatRoomMessage) ([]models.ChatRoomMessage, error) {
	query := s.db.Preload("Sender").Where("chat_room_uuid = ?", roomUUID)
	if after != nil {
		query = query.Where(
			"created_at > ? OR (created_at = ? AND uuid > ?)",
			after.CreatedAt, after.CreatedAt, after.UUID,
		)
	}
	var rows []models.ChatRoomMessage
	err := query.Order("created_at asc, uuid asc").Find(&rows).Error
	return rows, err
}

func (s *gormStorage) friendRooms(account uuid.UUID) ([]uuid.UUID, error) {
	var friends []models.Friend
	err := s.db.
		Where("is_request = false AND (from_uuid = ? OR to_uuid = ?)", account, account).
		Find(&friends).Error
	if err != nil {
		return nil, err
	}
	rooms := make([]uuid.UUID, 0, len(friends))
	for _, f := range friends {
		if f.ChatRoomUUID != nil {
			rooms = append(rooms, *f.ChatRoomUUID)
		}
	}
	return rooms, nil
}

func (s *gormStorage) gameRooms(account uuid.UUID) ([]uuid.UUID, error) {
	var rooms []uuid.UUID
	err := s.db.Model(&models.GameMember{}).
		Select("games.chat_room_uuid").
		Joins("JOIN games ON games.uuid = game_members.game_uuid").
		Where("game_members.player_uuid = ?", account).
		Scan(&rooms).Error
	return rooms, err
}

func (s *gormStorage) memberRooms(account uuid.UUID) ([]uuid.UUID, error) {
	var rooms []uuid.UUID
	err := s.db.Model(&models.ChatRoomMember{}).
		Select("chat_room_uuid").
		Where("member_uuid = ?", account).
		Scan(&rooms).Error
	return rooms, err
}
