package social

import (
	"sync"
	"testing"
	"time"

	models "Tavern/models/postgres"
	"Tavern/services/apierror"
	"Tavern/services/hub"
	"Tavern/services/lobby"
	"Tavern/services/sessions"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeStorage struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	friends  map[uuid.UUID]*models.Friend
	invites  map[uuid.UUID]*models.Invite
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		accounts: make(map[uuid.UUID]*models.Account),
		friends:  make(map[uuid.UUID]*models.Friend),
		invites:  make(map[uuid.UUID]*models.Invite),
	}
}

func (f *fakeStorage) account(accountUUID uuid.UUID) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountUUID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *a
	return &out, nil
}

func (f *fakeStorage) hydrate(row models.Friend) *models.Friend {
	if a, ok := f.accounts[row.FromUUID]; ok {
		row.From = *a
	}
	if a, ok := f.accounts[row.ToUUID]; ok {
		row.To = *a
	}
	return &row
}

func (f *fakeStorage) friendsOf(accountUUID uuid.UUID) ([]models.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Friend
	for _, row := range f.friends {
		if row.FromUUID == accountUUID || row.ToUUID == accountUUID {
			rows = append(rows, *f.hydrate(*row))
		}
	}
	return rows, nil
}

func (f *fakeStorage) friend(friendUUID uuid.UUID) (*models.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.friends[friendUUID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f.hydrate(*row), nil
}

func (f *fakeStorage) pair(a, b uuid.UUID) (*models.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.friends {
		if (row.FromUUID == a && row.ToUUID == b) || (row.FromUUID == b && row.ToUUID == a) {
			return f.hydrate(*row), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStorage) acceptedPair(a, b uuid.UUID) (*models.Friend, error) {
	row, err := f.pair(a, b)
	if err != nil || row.IsRequest {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (f *fakeStorage) createFriend(row *models.Friend) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *row
	f.friends[row.UUID] = &stored
	return nil
}

func (f *fakeStorage) acceptFriend(friendUUID, roomUUID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.friends[friendUUID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	room := roomUUID
	row.IsRequest = false
	row.ChatRoomUUID = &room
	return nil
}

func (f *fakeStorage) deleteFriend(friendUUID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.friends, friendUUID)
	return nil
}

func (f *fakeStorage) invitesTo(accountUUID uuid.UUID) ([]models.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Invite
	for _, row := range f.invites {
		if row.ToUUID == accountUUID {
			out := *row
			if a, ok := f.accounts[row.FromUUID]; ok {
				out.From = *a
			}
			rows = append(rows, out)
		}
	}
	return rows, nil
}

func (f *fakeStorage) invite(inviteUUID uuid.UUID) (*models.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.invites[inviteUUID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *row
	return &out, nil
}

func (f *fakeStorage) inviteBetween(from, to, lobbyUUID uuid.UUID) (*models.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.invites {
		if row.FromUUID == from && row.ToUUID == to && row.LobbyUUID == lobbyUUID {
			out := *row
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStorage) createInvite(row *models.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *row
	f.invites[row.UUID] = &stored
	return nil
}

func (f *fakeStorage) deleteInvite(inviteUUID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.invites, inviteUUID)
	return nil
}

// fakeChat serves both the graph and the lobby manager.
type fakeChat struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID][]uuid.UUID
	deleted []uuid.UUID
}

func newFakeChat() *fakeChat {
	return &fakeChat{rooms: make(map[uuid.UUID][]uuid.UUID)}
}

func (f *fakeChat) CreateRoom(members ...uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roomUUID := uuid.New()
	f.rooms[roomUUID] = append([]uuid.UUID(nil), members...)
	return roomUUID, nil
}

func (f *fakeChat) DeleteRoom(roomUUID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomUUID)
	f.deleted = append(f.deleted, roomUUID)
	return nil
}

func (f *fakeChat) AddMember(roomUUID, member uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[roomUUID] = append(f.rooms[roomUUID], member)
	return nil
}

func (f *fakeChat) RemoveMember(roomUUID, member uuid.UUID) error {
	return nil
}

type fakeGames struct{}

func (f *fakeGames) Create(name string, maxPlayers int, chatRoom uuid.UUID, startedBy uuid.UUID, members []uuid.UUID) (uuid.UUID, error) {
	return uuid.New(), nil
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []string
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

type fixture struct {
	storage  *fakeStorage
	registry *sessions.Registry
	hub      *hub.Hub
	chat     *fakeChat
	manager  *lobby.Manager
	graph    *Graph
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := hub.New()
	registry := sessions.NewRegistry(time.Minute)
	t.Cleanup(registry.Close)
	storage := newFakeStorage()
	chat := newFakeChat()
	manager := lobby.NewManager(h, registry, chat, &fakeGames{})
	return &fixture{
		storage:  storage,
		registry: registry,
		hub:      h,
		chat:     chat,
		manager:  manager,
		graph:    newGraph(storage, registry, h, chat, manager),
	}
}

func (f *fixture) addAccount(username string) *models.Account {
	a := &models.Account{UUID: uuid.New(), Username: username, DisplayName: username}
	f.storage.accounts[a.UUID] = a
	return a
}

func (f *fixture) connect(who uuid.UUID, id string) *fakeConn {
	conn := &fakeConn{id: id}
	f.registry.Bind(who, conn)
	return conn
}

func (f *fixture) befriend(t *testing.T, a, b *models.Account) uuid.UUID {
	t.Helper()
	info, apiErr := f.graph.Request(a, b.UUID)
	require.Nil(t, apiErr)
	_, apiErr = f.graph.Accept(b.UUID, info.UUID)
	require.Nil(t, apiErr)
	return info.UUID
}

func lobbyIdentity(a *models.Account) lobby.Identity {
	return lobby.Identity{UUID: a.UUID, Username: a.Username, DisplayName: a.DisplayName}
}

func TestRequestPushesToRecipient(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	bobConn := f.connect(bob.UUID, "bob-conn")

	info, apiErr := f.graph.Request(alice, bob.UUID)
	require.Nil(t, apiErr)
	assert.Equal(t, alice.UUID, info.From.UUID)
	assert.Equal(t, []string{hub.EventFriendRequest}, bobConn.received())

	_, apiErr = f.graph.Request(alice, bob.UUID)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.FriendshipAlreadyRequested, apiErr.Code)
}

func TestRequestSelfRejected(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")

	_, apiErr := f.graph.Request(alice, alice.UUID)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.InvalidUuid, apiErr.Code)
}

func TestAcceptNotifiesRequester(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	aliceConn := f.connect(alice.UUID, "alice-conn")

	request, apiErr := f.graph.Request(alice, bob.UUID)
	require.Nil(t, apiErr)

	accepted, apiErr := f.graph.Accept(bob.UUID, request.UUID)
	require.Nil(t, apiErr)
	assert.Equal(t, alice.UUID, accepted.Friend.UUID)
	require.NotNil(t, accepted.ChatRoomUUID)

	assert.Contains(t, aliceConn.received(), hub.EventFriendshipChanged)

	friends, requests, apiErr := f.graph.List(alice.UUID)
	require.Nil(t, apiErr)
	assert.Empty(t, requests)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.UUID, friends[0].Friend.UUID)
}

func TestAcceptOnlyByRecipient(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")

	request, apiErr := f.graph.Request(alice, bob.UUID)
	require.Nil(t, apiErr)

	_, apiErr = f.graph.Accept(alice.UUID, request.UUID)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.MissingPrivileges, apiErr.Code)
}

func TestDeleteNotifiesCounterparty(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	friendUUID := f.befriend(t, alice, bob)

	bobConn := f.connect(bob.UUID, "bob-conn")

	require.Nil(t, f.graph.Delete(alice.UUID, friendUUID))
	assert.Equal(t, []string{hub.EventFriendshipChanged}, bobConn.received())

	// The pair's private room goes with the friendship.
	assert.Len(t, f.chat.deleted, 1)

	friends, _, apiErr := f.graph.List(bob.UUID)
	require.Nil(t, apiErr)
	assert.Empty(t, friends)
}

func TestDeleteOnlyByParty(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	mallory := f.addAccount("mallory")
	friendUUID := f.befriend(t, alice, bob)

	apiErr := f.graph.Delete(mallory.UUID, friendUUID)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.MissingPrivileges, apiErr.Code)
}

func TestCreateInviteChecks(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	carol := f.addAccount("carol")

	info, apiErr := f.manager.Create(lobbyIdentity(alice), "table", 4, "")
	require.Nil(t, apiErr)

	// Not a lobby member.
	_, inviteErr := f.graph.CreateInvite(bob, carol.UUID, info.UUID)
	require.NotNil(t, inviteErr)
	assert.Equal(t, apierror.MissingPrivileges, inviteErr.Code)

	// No accepted friendship.
	_, inviteErr = f.graph.CreateInvite(alice, bob.UUID, info.UUID)
	require.NotNil(t, inviteErr)
	assert.Equal(t, apierror.InvalidFriendUuid, inviteErr.Code)
}

func TestCreateInviteIsIdempotentPerTriple(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	f.befriend(t, alice, bob)
	bobConn := f.connect(bob.UUID, "bob-conn")

	info, apiErr := f.manager.Create(lobbyIdentity(alice), "table", 4, "")
	require.Nil(t, apiErr)

	first, inviteErr := f.graph.CreateInvite(alice, bob.UUID, info.UUID)
	require.Nil(t, inviteErr)
	assert.Contains(t, bobConn.received(), hub.EventInvite)

	second, inviteErr := f.graph.CreateInvite(alice, bob.UUID, info.UUID)
	require.Nil(t, inviteErr)
	assert.Equal(t, first.UUID, second.UUID)
}

func TestAcceptInviteJoinsAndConsumesInvite(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	f.befriend(t, alice, bob)

	info, apiErr := f.manager.Create(lobbyIdentity(alice), "table", 4, "secret")
	require.Nil(t, apiErr)
	invite, inviteErr := f.graph.CreateInvite(alice, bob.UUID, info.UUID)
	require.Nil(t, inviteErr)

	// The invite is the credential; no password needed.
	joined, acceptErr := f.graph.AcceptInvite(lobbyIdentity(bob), invite.UUID)
	require.Nil(t, acceptErr)
	assert.Equal(t, info.UUID, joined.UUID)

	lobbyUUID, ok := f.manager.LobbyOf(bob.UUID)
	require.True(t, ok)
	assert.Equal(t, info.UUID, lobbyUUID)

	invites, apiErr := f.graph.ListInvites(bob.UUID)
	require.Nil(t, apiErr)
	assert.Empty(t, invites)
}

func TestAcceptInviteKeepsInviteWhenJoinFails(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	f.befriend(t, alice, bob)

	info, apiErr := f.manager.Create(lobbyIdentity(alice), "duo", 1, "")
	require.Nil(t, apiErr)
	invite, inviteErr := f.graph.CreateInvite(alice, bob.UUID, info.UUID)
	require.Nil(t, inviteErr)

	_, acceptErr := f.graph.AcceptInvite(lobbyIdentity(bob), invite.UUID)
	require.NotNil(t, acceptErr)
	assert.Equal(t, apierror.LobbyFull, acceptErr.Code)

	// The failed join leaves the invite outstanding for a later retry.
	invites, apiErr := f.graph.ListInvites(bob.UUID)
	require.Nil(t, apiErr)
	require.Len(t, invites, 1)
	assert.Equal(t, invite.UUID, invites[0].UUID)
}

func TestAcceptInviteOnlyByRecipient(t *testing.T) {
	f := newFixture(t)
	alice := f.addAccount("alice")
	bob := f.addAccount("bob")
	mallory := f.addAccount("mallory")
	f.befriend(t, alice, bob)

	info, apiErr := f.manager.Create(lobbyIdentity(alice), "table", 4, "")
	require.Nil(t, apiErr)
	invite, inviteErr := f.graph.CreateInvite(alice, bob.UUID, info.UUID)
	require.Nil(t, inviteErr)

	_, acceptErr := f.graph.AcceptInvite(lobbyIdentity(mallory), invite.UUID)
	require.NotNil(t, acceptErr)
	assert.Equal(t, apierror.MissingPrivileges, acceptErr.Code)
}
