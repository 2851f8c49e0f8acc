package social

import (
	"errors"
	"log"
	"time"

	models "Tavern/models/postgres"
	"Tavern/services/apierror"
	"Tavern/services/hub"
	"Tavern/services/lobby"
	"Tavern/services/sessions"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountInfo is the account shape embedded in friend/invite responses.
type AccountInfo struct {
	UUID        uuid.UUID `json:"uuid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

// FriendInfo is an accepted friendship as seen by one of its parties.
type FriendInfo struct {
	UUID         uuid.UUID   `json:"uuid"`
	Friend       AccountInfo `json:"friend"`
	ChatRoomUUID *uuid.UUID  `json:"chat_room_uuid"`
	CreatedAt    time.Time   `json:"created_at"`
}

// RequestInfo is a pending friend request.
type RequestInfo struct {
	UUID      uuid.UUID   `json:"uuid"`
	From      AccountInfo `json:"from"`
	To        AccountInfo `json:"to"`
	CreatedAt time.Time   `json:"created_at"`
}

// InviteInfo is a pending lobby invite.
type InviteInfo struct {
	UUID      uuid.UUID   `json:"uuid"`
	From      AccountInfo `json:"from"`
	LobbyUUID uuid.UUID   `json:"lobby_uuid"`
	CreatedAt time.Time   `json:"created_at"`
}

// ChatService is the slice of the chat relay the graph needs: accepting a
// friendship lazily creates the pair's private room, deleting it removes
// the room.
type ChatService interface {
	CreateRoom(members ...uuid.UUID) (uuid.UUID, error)
	DeleteRoom(roomUUID uuid.UUID) error
}

// storage is the persistence behind the graph. gormStorage is the
// production implementation; a missing row surfaces as
// gorm.ErrRecordNotFound.
type storage interface {
	account(accountUUID uuid.UUID) (*models.Account, error)
	friendsOf(accountUUID uuid.UUID) ([]models.Friend, error)
	friend(friendUUID uuid.UUID) (*models.Friend, error)
	pair(a, b uuid.UUID) (*models.Friend, error)
	acceptedPair(a, b uuid.UUID) (*models.Friend, error)
	createFriend(row *models.Friend) error
	acceptFriend(friendUUID, roomUUID uuid.UUID) error
	deleteFriend(friendUUID uuid.UUID) error
	invitesTo(accountUUID uuid.UUID) ([]models.Invite, error)
	invite(inviteUUID uuid.UUID) (*models.Invite, error)
	inviteBetween(from, to, lobbyUUID uuid.UUID) (*models.Invite, error)
	createInvite(row *models.Invite) error
	deleteInvite(inviteUUID uuid.UUID) error
}

// Graph manages friendships, friend requests and lobby invites. Accepted
// invites drive LobbyManager membership changes; the invite is removed
// only when the join actually happened.
type Graph struct {
	storage  storage
	registry *sessions.Registry
	hub      *hub.Hub
	chat     ChatService
	lobbies  *lobby.Manager
}

func NewGraph(db *gorm.DB, registry *sessions.Registry, h *hub.Hub, chat ChatService, lobbies *lobby.Manager) *Graph {
	return newGraph(&gormStorage{db: db}, registry, h, chat, lobbies)
}

func newGraph(s storage, registry *sessions.Registry, h *hub.Hub, chat ChatService, lobbies *lobby.Manager) *Graph {
	return &Graph{storage: s, registry: registry, hub: h, chat: chat, lobbies: lobbies}
}

func accountInfo(a *models.Account) AccountInfo {
	return AccountInfo{UUID: a.UUID, Username: a.Username, DisplayName: a.DisplayName}
}

// List returns the caller's accepted friendships and pending requests
// (both directions).
func (g *Graph) List(caller uuid.UUID) ([]FriendInfo, []RequestInfo, *apierror.ApiError) {
	rows, err := g.storage.friendsOf(caller)
	if err != nil {
		return nil, nil, apierror.Of(apierror.DatabaseError)
	}

	friends := []FriendInfo{}
	requests := []RequestInfo{}
	for _, f := range rows {
		if f.IsRequest {
			requests = append(requests, RequestInfo{
				UUID:      f.UUID,
				From:      accountInfo(&f.From),
				To:        accountInfo(&f.To),
				CreatedAt: f.CreatedAt,
			})
			continue
		}
		other := f.To
		if f.ToUUID == caller {
			other = f.From
		}
		friends = append(friends, FriendInfo{
			UUID:         f.UUID,
			Friend:       accountInfo(&other),
			ChatRoomUUID: f.ChatRoomUUID,
			CreatedAt:    f.CreatedAt,
		})
	}
	return friends, requests, nil
}

// Request creates a pending friend request and pushes it to the
// recipient's live connections.
func (g *Graph) Request(from *models.Account, toUUID uuid.UUID) (RequestInfo, *apierror.ApiError) {
	if from.UUID == toUUID {
		return RequestInfo{}, apierror.New(apierror.InvalidUuid, "You cannot befriend yourself")
	}

	to, err := g.storage.account(toUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestInfo{}, apierror.Of(apierror.InvalidUuid)
		}
		return RequestInfo{}, apierror.Of(apierror.DatabaseError)
	}

	existing, err := g.storage.pair(from.UUID, toUUID)
	if err == nil {
		if existing.IsRequest {
			return RequestInfo{}, apierror.Of(apierror.FriendshipAlreadyRequested)
		}
		return RequestInfo{}, apierror.Of(apierror.AlreadyFriends)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return RequestInfo{}, apierror.Of(apierror.DatabaseError)
	}

	row := models.Friend{
		UUID:      uuid.New(),
		FromUUID:  from.UUID,
		ToUUID:    toUUID,
		IsRequest: true,
		CreatedAt: time.Now(),
	}
	if err := g.storage.createFriend(&row); err != nil {
		return RequestInfo{}, apierror.Of(apierror.DatabaseError)
	}

	info := RequestInfo{
		UUID:      row.UUID,
		From:      accountInfo(from),
		To:        accountInfo(to),
		CreatedAt: row.CreatedAt,
	}
	g.registry.EmitTo(toUUID, hub.EventFriendRequest, info)
	log.Printf("[FRIEND] %s requested friendship with %s", from.Username, to.Username)
	return info, nil
}

// Accept flips a pending request into a friendship and lazily creates the
// pair's private chat room. Only the recipient may accept; the requester's
// live connections are told the friendship is now in effect.
func (g *Graph) Accept(caller uuid.UUID, requestUUID uuid.UUID) (FriendInfo, *apierror.ApiError) {
	row, err := g.storage.friend(requestUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FriendInfo{}, apierror.Of(apierror.InvalidFriendUuid)
		}
		return FriendInfo{}, apierror.Of(apierror.DatabaseError)
	}
	if !row.IsRequest || row.ToUUID != caller {
		return FriendInfo{}, apierror.Of(apierror.MissingPrivileges)
	}

	roomUUID, err := g.chat.CreateRoom(row.FromUUID, row.ToUUID)
	if err != nil {
		return FriendInfo{}, apierror.Of(apierror.DatabaseError)
	}

	if err := g.storage.acceptFriend(requestUUID, roomUUID); err != nil {
		// Compensate so an orphaned room is not left behind.
		g.chat.DeleteRoom(roomUUID)
		return FriendInfo{}, apierror.Of(apierror.DatabaseError)
	}

	// Both parties' live connections start receiving the room's fan-out.
	for _, c := range g.registry.Connections(row.FromUUID) {
		g.hub.Subscribe(roomUUID.String(), c)
	}
	for _, c := range g.registry.Connections(row.ToUUID) {
		g.hub.Subscribe(roomUUID.String(), c)
	}

	g.registry.EmitTo(row.FromUUID, hub.EventFriendshipChanged, FriendInfo{
		UUID:         row.UUID,
		Friend:       accountInfo(&row.To),
		ChatRoomUUID: &roomUUID,
		CreatedAt:    row.CreatedAt,
	})

	log.Printf("[FRIEND] %s accepted friendship with %s", row.To.Username, row.From.Username)
	return FriendInfo{
		UUID:         row.UUID,
		Friend:       accountInfo(&row.From),
		ChatRoomUUID: &roomUUID,
		CreatedAt:    row.CreatedAt,
	}, nil
}

// Delete removes a friendship or a pending request. Either party may
// delete; the private chat room goes with it and the counterparty is told
// the friendship no longer exists.
func (g *Graph) Delete(caller uuid.UUID, friendUUID uuid.UUID) *apierror.ApiError {
	row, err := g.storage.friend(friendUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.Of(apierror.InvalidFriendUuid)
		}
		return apierror.Of(apierror.DatabaseError)
	}
	if row.FromUUID != caller && row.ToUUID != caller {
		return apierror.Of(apierror.MissingPrivileges)
	}

	if err := g.storage.deleteFriend(friendUUID); err != nil {
		return apierror.Of(apierror.DatabaseError)
	}
	if row.ChatRoomUUID != nil {
		if err := g.chat.DeleteRoom(*row.ChatRoomUUID); err != nil {
			log.Printf("[FRIEND-ERROR] deleting chat room %s: %v", *row.ChatRoomUUID, err)
		}
	}

	counterparty := row.FromUUID
	if counterparty == caller {
		counterparty = row.ToUUID
	}
	g.registry.EmitTo(counterparty, hub.EventFriendshipChanged, map[string]any{
		"uuid": row.UUID,
	})
	return nil
}

// ListInvites returns the caller's incoming lobby invites.
func (g *Graph) ListInvites(caller uuid.UUID) ([]InviteInfo, *apierror.ApiError) {
	rows, err := g.storage.invitesTo(caller)
	if err != nil {
		return nil, apierror.Of(apierror.DatabaseError)
	}
	out := make([]InviteInfo, len(rows))
	for i, inv := range rows {
		out[i] = InviteInfo{
			UUID:      inv.UUID,
			From:      accountInfo(&inv.From),
			LobbyUUID: inv.LobbyUUID,
			CreatedAt: inv.CreatedAt,
		}
	}
	return out, nil
}

// CreateInvite invites a friend into a lobby the caller is a member of.
// Creating an invite that already exists returns the existing one, which
// keeps the one-outstanding-invite-per-(from,to,lobby) invariant without a
// dedicated error.
func (g *Graph) CreateInvite(from *models.Account, toUUID uuid.UUID, lobbyUUID uuid.UUID) (InviteInfo, *apierror.ApiError) {
	if _, err := g.lobbies.Get(lobbyUUID); err != nil {
		return InviteInfo{}, err
	}
	if !g.lobbies.IsMember(lobbyUUID, from.UUID) {
		return InviteInfo{}, apierror.Of(apierror.MissingPrivileges)
	}

	to, err := g.storage.account(toUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InviteInfo{}, apierror.Of(apierror.InvalidUuid)
		}
		return InviteInfo{}, apierror.Of(apierror.DatabaseError)
	}

	// Invites require an accepted friendship.
	_, err = g.storage.acceptedPair(from.UUID, toUUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return InviteInfo{}, apierror.Of(apierror.InvalidFriendUuid)
	}
	if err != nil {
		return InviteInfo{}, apierror.Of(apierror.DatabaseError)
	}

	existing, err := g.storage.inviteBetween(from.UUID, toUUID, lobbyUUID)
	if err == nil {
		return InviteInfo{
			UUID:      existing.UUID,
			From:      accountInfo(from),
			LobbyUUID: lobbyUUID,
			CreatedAt: existing.CreatedAt,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return InviteInfo{}, apierror.Of(apierror.DatabaseError)
	}

	row := models.Invite{
		UUID:      uuid.New(),
		FromUUID:  from.UUID,
		ToUUID:    toUUID,
		LobbyUUID: lobbyUUID,
		CreatedAt: time.Now(),
	}
	if err := g.storage.createInvite(&row); err != nil {
		return InviteInfo{}, apierror.Of(apierror.DatabaseError)
	}

	info := InviteInfo{
		UUID:      row.UUID,
		From:      accountInfo(from),
		LobbyUUID: lobbyUUID,
		CreatedAt: row.CreatedAt,
	}
	g.registry.EmitTo(toUUID, hub.EventInvite, info)
	log.Printf("[INVITE] %s invited %s to lobby %s", from.Username, to.Username, lobbyUUID)
	return info, nil
}

// AcceptInvite joins the recipient into the invite's lobby and deletes the
// invite. If the join fails (lobby full, gone) the invite stays and the
// error surfaces to the caller; the invite is never deleted without the
// join having happened.
func (g *Graph) AcceptInvite(caller lobby.Identity, inviteUUID uuid.UUID) (lobby.Info, *apierror.ApiError) {
	row, err := g.storage.invite(inviteUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lobby.Info{}, apierror.Of(apierror.InvalidUuid)
		}
		return lobby.Info{}, apierror.Of(apierror.DatabaseError)
	}
	if row.ToUUID != caller.UUID {
		return lobby.Info{}, apierror.Of(apierror.MissingPrivileges)
	}

	info, joinErr := g.lobbies.Join(row.LobbyUUID, caller, "", true)
	if joinErr != nil {
		return lobby.Info{}, joinErr
	}

	if err := g.storage.deleteInvite(inviteUUID); err != nil {
		// The join committed; a stale invite row is harmless and a retry
		// resolves as AlreadyInThisLobby.
		log.Printf("[INVITE-ERROR] deleting accepted invite %s: %v", inviteUUID, err)
	}
	return info, nil
}

// DeleteInvite withdraws or declines an invite. Either party may delete.
func (g *Graph) DeleteInvite(caller uuid.UUID, inviteUUID uuid.UUID) *apierror.ApiError {
	row, err := g.storage.invite(inviteUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.Of(apierror.InvalidUuid)
		}
		return apierror.Of(apierror.DatabaseError)
	}
	if row.FromUUID != caller && row.ToUUID != caller {
		return apierror.Of(apierror.MissingPrivileges)
	}
	if err := g.storage.deleteInvite(inviteUUID); err != nil {
		return apierror.Of(apierror.DatabaseError)
	}
	return nil
}

// gormStorage is the postgres-backed friend/invite store.
type gormStorage struct {
	db *gorm.DB
}

// pairCondition matches the unordered (a, b) friendship pair.
const pairCondition = "(from_uuid = ? AND to_uuid = ?) OR (from_uuid = ? AND to_uuid = ?)"

func (s *gormStorage) account(accountUUID uuid.UUID) (*models.Account, error) {
	var a models.Account
	if err := s.db.First(&a, "uuid = ?", accountUUID).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *gormStorage) friendsOf(accountUUID uuid.UUID) ([]models.Friend, error) {
	var rows []models.Friend
	err := s.db.Preload("From").Preload("To").
		Where("from_uuid = ? OR to_uuid = ?", accountUUID, accountUUID).
		Find(&rows).Error
	return rows, err
}

func (s *gormStorage) friend(friendUUID uuid.UUID) (*models.Friend, error) {
	var row models.Friend
	if err := s.db.Preload("From").Preload("To").First(&row, "uuid = ?", friendUUID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *gormStorage) pair(a, b uuid.UUID) (*models.Friend, error) {
	var row models.Friend
	err := s.db.
		Where(pairCondition, a, b, b, a).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *gormStorage) acceptedPair(a, b uuid.UUID) (*models.Friend, error) {
	var row models.Friend
	err := s.db.
		Where("is_request = false AND ("+pairCondition+")", a, b, b, a).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *gormStorage) createFriend(row *models.Friend) error {
	return s.db.Create(row).Error
}

func (s *gormStorage) acceptFriend(friendUUID, roomUUID uuid.UUID) error {
	return s.db.Model(&models.Friend{}).
		Where("uuid = ?", friendUUID).
		Updates(map[string]any{"is_request": false, "chat_room_uuid": roomUUID}).Error
}

func (s *gormStorage) deleteFriend(friendUUID uuid.UUID) error {
	return s.db.Delete(&models.Friend{}, "uuid = ?", friendUUID).Error
}

func (s *gormStorage) invitesTo(accountUUID uuid.UUID) ([]models.Invite, error) {
	var rows []models.Invite
	err := s.db.Preload("From").Where("to_uuid = ?", accountUUID).Find(&rows).Error
	return rows, err
}

func (s *gormStorage) invite(inviteUUID uuid.UUID) (*models.Invite, error) {
	var row models.Invite
	if err := s.db.First(&row, "uuid = ?", inviteUUID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *gormStorage) inviteBetween(from, to, lobbyUUID uuid.UUID) (*models.Invite, error) {
	var row models.Invite
	err := s.db.
		Where("from_uuid = ? AND to_uuid = ? AND lobby_uuid = ?", from, to, lobbyUUID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *gormStorage) createInvite(row *models.Invite) error {
	return s.db.Create(row).Error
}

func (s *gormStorage) deleteInvite(inviteUUID uuid.UUID) error {
	return s.db.Delete(&models.Invite{}, "uuid = ?", inviteUUID).Error
}
