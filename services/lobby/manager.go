package lobby

import (
	"log"
	"sync"
	"time"

	"Tavern/services/apierror"
	"Tavern/services/hub"
	"Tavern/services/sessions"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ChatService is the slice of the chat relay the manager needs: lobby
// membership implicitly drives chat membership.
type ChatService interface {
	CreateRoom(members ...uuid.UUID) (uuid.UUID, error)
	AddMember(roomUUID, member uuid.UUID) error
	RemoveMember(roomUUID, member uuid.UUID) error
	DeleteRoom(roomUUID uuid.UUID) error
}

// GameService materializes a game from a lobby on start.
type GameService interface {
	Create(name string, maxPlayers int, chatRoom uuid.UUID, startedBy uuid.UUID, members []uuid.UUID) (uuid.UUID, error)
}

// Manager is the authoritative lobby/membership state machine. Every
// mutating operation on one lobby is serialized through the manager so two
// concurrent joins never both observe the last free slot. The registry
// lock is only held for lookups and for the identity→lobby index; the
// per-lobby critical section covers validation, mutation and broadcast so
// that broadcast order equals commit order.
type Manager struct {
	mu       sync.Mutex
	lobbies  map[uuid.UUID]*Lobby
	locks    map[uuid.UUID]*sync.Mutex
	byMember map[uuid.UUID]uuid.UUID

	hub      *hub.Hub
	registry *sessions.Registry
	chat     ChatService
	games    GameService
}

func NewManager(h *hub.Hub, registry *sessions.Registry, chat ChatService, games GameService) *Manager {
	m := &Manager{
		lobbies:  make(map[uuid.UUID]*Lobby),
		locks:    make(map[uuid.UUID]*sync.Mutex),
		byMember: make(map[uuid.UUID]uuid.UUID),
		hub:      h,
		registry: registry,
		chat:     chat,
		games:    games,
	}
	registry.OnDeparture(m.handleDeparture)
	return m
}

// lookup returns the lobby and its serialization lock.
func (m *Manager) lookup(lobbyUUID uuid.UUID) (*Lobby, *sync.Mutex, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[lobbyUUID]
	if !ok {
		return nil, nil, false
	}
	return l, m.locks[lobbyUUID], true
}

func (m *Manager) subscribeIdentity(roomID string, identity uuid.UUID) {
	for _, c := range m.registry.Connections(identity) {
		m.hub.Subscribe(roomID, c)
	}
}

func (m *Manager) unsubscribeIdentity(roomID string, identity uuid.UUID) {
	for _, c := range m.registry.Connections(identity) {
		m.hub.Unsubscribe(roomID, c)
	}
}

// Create makes a new lobby with the caller as owner and sole member. A
// chat room is created alongside it and the caller becomes its first
// member.
func (m *Manager) Create(owner Identity, name string, maxPlayers int, password string) (Info, *apierror.ApiError) {
	if maxPlayers < 1 {
		return Info{}, apierror.Of(apierror.InvalidMaxPlayersCount)
	}

	m.mu.Lock()
	if _, taken := m.byMember[owner.UUID]; taken {
		m.mu.Unlock()
		return Info{}, apierror.Of(apierror.AlreadyInALobby)
	}
	// Reserve the identity before the backing-store round trip so a
	// concurrent create/join cannot slip in.
	m.byMember[owner.UUID] = uuid.Nil
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		delete(m.byMember, owner.UUID)
		m.mu.Unlock()
	}

	passwordHash := ""
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			release()
			return Info{}, apierror.Of(apierror.InternalServerError)
		}
		passwordHash = string(hash)
	}

	chatRoom, err := m.chat.CreateRoom(owner.UUID)
	if err != nil {
		release()
		log.Printf("[LOBBY-ERROR] creating chat room: %v", err)
		return Info{}, apierror.Of(apierror.DatabaseError)
	}

	now := time.Now()
	l := &Lobby{
		UUID:         uuid.New(),
		Name:         name,
		MaxPlayers:   maxPlayers,
		OwnerUUID:    owner.UUID,
		ChatRoomUUID: chatRoom,
		CreatedAt:    now,
		passwordHash: passwordHash,
		state:        StateOpen,
		members:      []Member{{Identity: owner, JoinedAt: now}},
	}

	m.mu.Lock()
	m.lobbies[l.UUID] = l
	m.locks[l.UUID] = &sync.Mutex{}
	m.byMember[owner.UUID] = l.UUID
	m.mu.Unlock()

	m.subscribeIdentity(l.UUID.String(), owner.UUID)
	m.subscribeIdentity(chatRoom.String(), owner.UUID)

	log.Printf("[LOBBY] %s created lobby %s (%q, max %d)", owner.Username, l.UUID, name, maxPlayers)
	return l.snapshot(), nil
}

// Join adds the caller to an open lobby. viaInvite skips the password
// check; the invite itself is the credential.
func (m *Manager) Join(lobbyUUID uuid.UUID, caller Identity, password string, viaInvite bool) (Info, *apierror.ApiError) {
	m.mu.Lock()
	l, ok := m.lobbies[lobbyUUID]
	if !ok {
		m.mu.Unlock()
		return Info{}, apierror.Of(apierror.InvalidLobbyUuid)
	}
	lock := m.locks[lobbyUUID]
	if current, taken := m.byMember[caller.UUID]; taken {
		m.mu.Unlock()
		if current == lobbyUUID {
			return Info{}, apierror.Of(apierror.AlreadyInThisLobby)
		}
		return Info{}, apierror.Of(apierror.AlreadyInALobby)
	}
	m.byMember[caller.UUID] = lobbyUUID
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		delete(m.byMember, caller.UUID)
		m.mu.Unlock()
	}

	lock.Lock()
	defer lock.Unlock()

	if l.state != StateOpen {
		release()
		return Info{}, apierror.Of(apierror.InvalidLobbyUuid)
	}
	if len(l.members) >= l.MaxPlayers {
		release()
		return Info{}, apierror.Of(apierror.LobbyFull)
	}
	if l.passwordHash != "" && !viaInvite {
		if bcrypt.CompareHashAndPassword([]byte(l.passwordHash), []byte(password)) != nil {
			release()
			return Info{}, apierror.Of(apierror.InvalidPassword)
		}
	}

	if err := m.chat.AddMember(l.ChatRoomUUID, caller.UUID); err != nil {
		release()
		log.Printf("[LOBBY-ERROR] adding chat member: %v", err)
		return Info{}, apierror.Of(apierror.DatabaseError)
	}

	l.members = append(l.members, Member{Identity: caller, JoinedAt: time.Now()})

	m.subscribeIdentity(l.UUID.String(), caller.UUID)
	m.subscribeIdentity(l.ChatRoomUUID.String(), caller.UUID)

	info := l.snapshot()
	m.hub.Publish(l.UUID.String(), hub.EventMemberJoined, map[string]any{
		"lobby":  info,
		"member": caller,
	})
	log.Printf("[LOBBY] %s joined lobby %s (%d/%d)", caller.Username, l.UUID, len(l.members), l.MaxPlayers)
	return info, nil
}

// Leave removes the caller from a lobby. Leaving a lobby the caller is not
// a member of is treated as success. If the owner leaves, ownership
// transfers to the earliest-joined remaining member; if the lobby becomes
// empty it is destroyed.
func (m *Manager) Leave(lobbyUUID uuid.UUID, caller uuid.UUID) *apierror.ApiError {
	l, lock, ok := m.lookup(lobbyUUID)
	if !ok {
		// The lobby may have been destroyed while the caller still held a
		// stale membership entry; clear it so the identity is free again.
		m.mu.Lock()
		if m.byMember[caller] == lobbyUUID {
			delete(m.byMember, caller)
		}
		m.mu.Unlock()
		return nil
	}

	lock.Lock()
	defer lock.Unlock()

	if l.state == StateClosed {
		return nil
	}

	i := l.memberIndex(caller)
	if i < 0 {
		return nil
	}
	member := l.members[i]
	l.members = append(l.members[:i], l.members[i+1:]...)

	m.mu.Lock()
	delete(m.byMember, caller)
	m.mu.Unlock()

	if err := m.chat.RemoveMember(l.ChatRoomUUID, caller); err != nil {
		log.Printf("[LOBBY-ERROR] removing chat member: %v", err)
	}
	m.unsubscribeIdentity(l.UUID.String(), caller)
	m.unsubscribeIdentity(l.ChatRoomUUID.String(), caller)

	if len(l.members) == 0 {
		m.destroyLocked(l)
		log.Printf("[LOBBY] lobby %s destroyed, last member %s left", l.UUID, member.Username)
		return nil
	}

	if l.OwnerUUID == caller {
		// Deterministic transfer: the longest-standing member inherits.
		l.OwnerUUID = l.members[0].UUID
		log.Printf("[LOBBY] ownership of %s transferred to %s", l.UUID, l.members[0].Username)
	}

	m.hub.Publish(l.UUID.String(), hub.EventMemberLeft, map[string]any{
		"lobby":  l.snapshot(),
		"member": member.Identity,
	})
	return nil
}

// Kick removes a non-owner member. Only the owner may kick; the target's
// connections are unsubscribed from the room before the broadcast so it
// stops receiving further room traffic.
func (m *Manager) Kick(lobbyUUID uuid.UUID, caller uuid.UUID, target uuid.UUID) *apierror.ApiError {
	l, lock, ok := m.lookup(lobbyUUID)
	if !ok {
		return apierror.Of(apierror.InvalidLobbyUuid)
	}

	lock.Lock()
	defer lock.Unlock()

	if l.state == StateClosed {
		return apierror.Of(apierror.InvalidLobbyUuid)
	}
	if l.OwnerUUID != caller {
		return apierror.Of(apierror.MissingPrivileges)
	}
	i := l.memberIndex(target)
	if i < 0 || target == l.OwnerUUID {
		return apierror.Of(apierror.InvalidPlayerUuid)
	}
	member := l.members[i]
	l.members = append(l.members[:i], l.members[i+1:]...)

	m.mu.Lock()
	delete(m.byMember, target)
	m.mu.Unlock()

	if err := m.chat.RemoveMember(l.ChatRoomUUID, target); err != nil {
		log.Printf("[LOBBY-ERROR] removing chat member: %v", err)
	}
	m.unsubscribeIdentity(l.UUID.String(), target)
	m.unsubscribeIdentity(l.ChatRoomUUID.String(), target)

	payload := map[string]any{
		"lobby":  l.snapshot(),
		"member": member.Identity,
	}
	// The target no longer receives room broadcasts, so tell it directly.
	m.registry.EmitTo(target, hub.EventMemberKicked, payload)
	m.hub.Publish(l.UUID.String(), hub.EventMemberKicked, payload)
	log.Printf("[LOBBY] %s kicked from lobby %s", member.Username, l.UUID)
	return nil
}

// Start transitions the lobby Open → Starting → Started: a game is
// materialized with the current membership snapshot, the lobby is
// destroyed, and all former members are notified. The game inherits the
// lobby's chat room, so chat history and membership carry over untouched.
func (m *Manager) Start(lobbyUUID uuid.UUID, caller uuid.UUID) (uuid.UUID, *apierror.ApiError) {
	l, lock, ok := m.lookup(lobbyUUID)
	if !ok {
		return uuid.Nil, apierror.Of(apierror.InvalidLobbyUuid)
	}

	lock.Lock()
	defer lock.Unlock()

	if l.OwnerUUID != caller {
		return uuid.Nil, apierror.Of(apierror.MissingPrivileges)
	}
	if l.state != StateOpen {
		return uuid.Nil, apierror.Of(apierror.InvalidLobbyUuid)
	}

	l.state = StateStarting
	members := make([]uuid.UUID, len(l.members))
	for i, mem := range l.members {
		members[i] = mem.UUID
	}

	gameUUID, err := m.games.Create(l.Name, l.MaxPlayers, l.ChatRoomUUID, caller, members)
	if err != nil {
		// Nothing observable changed: the lobby reopens.
		l.state = StateOpen
		log.Printf("[LOBBY-ERROR] creating game from lobby %s: %v", l.UUID, err)
		return uuid.Nil, apierror.Of(apierror.DatabaseError)
	}

	l.state = StateClosed
	m.hub.Publish(l.UUID.String(), hub.EventGameStarted, map[string]any{
		"game_uuid":      gameUUID,
		"lobby_uuid":     l.UUID,
		"chat_room_uuid": l.ChatRoomUUID,
		"members":        l.snapshot().Members,
	})

	m.mu.Lock()
	for _, mem := range members {
		delete(m.byMember, mem)
	}
	delete(m.lobbies, l.UUID)
	delete(m.locks, l.UUID)
	m.mu.Unlock()

	for _, mem := range members {
		m.unsubscribeIdentity(l.UUID.String(), mem)
		// Chat subscriptions stay: the game chat room is the same room.
	}

	log.Printf("[LOBBY] lobby %s started as game %s with %d players", l.UUID, gameUUID, len(members))
	return gameUUID, nil
}

// Close destroys a lobby on the owner's request.
func (m *Manager) Close(lobbyUUID uuid.UUID, caller uuid.UUID) *apierror.ApiError {
	l, lock, ok := m.lookup(lobbyUUID)
	if !ok {
		return apierror.Of(apierror.InvalidLobbyUuid)
	}

	lock.Lock()
	defer lock.Unlock()

	if l.state == StateClosed {
		return apierror.Of(apierror.InvalidLobbyUuid)
	}
	if l.OwnerUUID != caller {
		return apierror.Of(apierror.MissingPrivileges)
	}

	m.hub.Publish(l.UUID.String(), hub.EventLobbyClosed, map[string]any{
		"lobby_uuid": l.UUID,
	})
	for _, mem := range l.members {
		m.unsubscribeIdentity(l.UUID.String(), mem.UUID)
		m.unsubscribeIdentity(l.ChatRoomUUID.String(), mem.UUID)
	}
	m.destroyLocked(l)
	log.Printf("[LOBBY] lobby %s closed by owner", l.UUID)
	return nil
}

// destroyLocked removes the lobby from the manager and deletes its chat
// room. Caller must hold the lobby's lock and have emptied / notified the
// membership already. The closed marker stops callers that looked the lobby
// up before destruction from committing into the dead struct.
func (m *Manager) destroyLocked(l *Lobby) {
	l.state = StateClosed

	m.mu.Lock()
	for _, mem := range l.members {
		delete(m.byMember, mem.UUID)
	}
	delete(m.lobbies, l.UUID)
	delete(m.locks, l.UUID)
	m.mu.Unlock()

	if err := m.chat.DeleteRoom(l.ChatRoomUUID); err != nil {
		log.Printf("[LOBBY-ERROR] deleting chat room %s: %v", l.ChatRoomUUID, err)
	}
}

// handleDeparture is the implicit leave that runs once a disconnected
// identity's grace period expired.
func (m *Manager) handleDeparture(identity uuid.UUID) {
	m.mu.Lock()
	lobbyUUID, ok := m.byMember[identity]
	m.mu.Unlock()
	if !ok || lobbyUUID == uuid.Nil {
		return
	}
	log.Printf("[DISCONNECT] removing %s from lobby %s after grace period", identity, lobbyUUID)
	m.Leave(lobbyUUID, identity)
}

// Get returns the snapshot of a single lobby.
func (m *Manager) Get(lobbyUUID uuid.UUID) (Info, *apierror.ApiError) {
	l, lock, ok := m.lookup(lobbyUUID)
	if !ok {
		return Info{}, apierror.Of(apierror.InvalidLobbyUuid)
	}
	lock.Lock()
	defer lock.Unlock()
	if l.state == StateClosed {
		return Info{}, apierror.Of(apierror.InvalidLobbyUuid)
	}
	return l.snapshot(), nil
}

// List returns snapshots of all open lobbies.
func (m *Manager) List() []Info {
	m.mu.Lock()
	lobbies := make([]*Lobby, 0, len(m.lobbies))
	locks := make([]*sync.Mutex, 0, len(m.lobbies))
	for id, l := range m.lobbies {
		lobbies = append(lobbies, l)
		locks = append(locks, m.locks[id])
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(lobbies))
	for i, l := range lobbies {
		locks[i].Lock()
		if l.state == StateOpen {
			out = append(out, l.snapshot())
		}
		locks[i].Unlock()
	}
	return out
}

// LobbyOf returns the lobby an identity is currently a member of.
func (m *Manager) LobbyOf(identity uuid.UUID) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byMember[identity]
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ChatRoomOf returns the chat room of the lobby an identity is in.
func (m *Manager) ChatRoomOf(identity uuid.UUID) (uuid.UUID, bool) {
	lobbyUUID, ok := m.LobbyOf(identity)
	if !ok {
		return uuid.Nil, false
	}
	l, lock, ok := m.lookup(lobbyUUID)
	if !ok {
		return uuid.Nil, false
	}
	lock.Lock()
	defer lock.Unlock()
	if l.state == StateClosed {
		return uuid.Nil, false
	}
	return l.ChatRoomUUID, true
}

// IsMember reports lobby membership.
func (m *Manager) IsMember(lobbyUUID uuid.UUID, identity uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byMember[identity] == lobbyUUID
}
