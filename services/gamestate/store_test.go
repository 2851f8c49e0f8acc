package gamestate

import (
	"sort"
	"sync"
	"testing"
	"time"

	models "Tavern/models/postgres"
	"Tavern/services/apierror"
	"Tavern/services/hub"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeLedger struct {
	mu      sync.Mutex
	games   map[uuid.UUID]*models.Game
	players map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		games:   make(map[uuid.UUID]*models.Game),
		players: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (f *fakeLedger) create(game *models.Game, members []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *game
	f.games[game.UUID] = &stored
	set := make(map[uuid.UUID]bool)
	for _, m := range members {
		set[m] = true
	}
	f.players[game.UUID] = set
	return nil
}

func (f *fakeLedger) load(gameUUID uuid.UUID) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameUUID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *g
	out.UpdatedBy = models.Account{UUID: g.UpdatedByUUID, Username: "player", DisplayName: "player"}
	return &out, nil
}

func (f *fakeLedger) isMember(gameUUID, account uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[gameUUID][account], nil
}

func (f *fakeLedger) byPlayer(account uuid.UUID) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Game
	for id, set := range f.players {
		if set[account] {
			out = append(out, *f.games[id])
		}
	}
	return out, nil
}

func (f *fakeLedger) saveState(gameUUID uuid.UUID, blob []byte, dataID int64, updater uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.games[gameUUID]
	g.Data = append([]byte(nil), blob...)
	g.DataID = dataID
	g.UpdatedByUUID = updater
	g.UpdatedAt = at
	return nil
}

type fakeConn struct {
	id string

	mu       sync.Mutex
	events   []string
	payloads []any
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func (c *fakeConn) lastPayload() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return nil
	}
	return c.payloads[len(c.payloads)-1]
}

func newTestStore() (*Store, *fakeLedger, *hub.Hub) {
	l := newFakeLedger()
	h := hub.New()
	return newStore(l, nil, h), l, h
}

func startGame(t *testing.T, s *Store, players ...uuid.UUID) (uuid.UUID, uuid.UUID) {
	t.Helper()
	chatRoom := uuid.New()
	gameUUID, err := s.Create("skirmish", len(players), chatRoom, players[0], players)
	require.NoError(t, err)
	return gameUUID, chatRoom
}

func TestCreateStartsAtVersionZero(t *testing.T) {
	s, _, _ := newTestStore()
	alice := uuid.New()
	gameUUID, _ := startGame(t, s, alice)

	overview, apiErr := s.Overview(gameUUID, alice)
	require.Nil(t, apiErr)
	assert.Equal(t, int64(0), overview.DataID)
}

func TestPushIncrementsDataIDGaplessly(t *testing.T) {
	s, _, _ := newTestStore()
	alice := uuid.New()
	gameUUID, _ := startGame(t, s, alice)

	for want := int64(1); want <= 5; want++ {
		got, apiErr := s.Push(gameUUID, alice, []byte("turn"))
		require.Nil(t, apiErr)
		assert.Equal(t, want, got)

		// Interleaved overviews must observe the committed version and
		// never disturb the counter.
		overview, apiErr := s.Overview(gameUUID, alice)
		require.Nil(t, apiErr)
		assert.Equal(t, want, overview.DataID)
	}
}

func TestConcurrentPushesStayGapless(t *testing.T) {
	s, _, _ := newTestStore()
	alice := uuid.New()
	bob := uuid.New()
	gameUUID, _ := startGame(t, s, alice, bob)

	var wg sync.WaitGroup
	ids := make(chan int64, 8)
	for i := 0; i < 8; i++ {
		player := alice
		if i%2 == 1 {
			player = bob
		}
		wg.Add(1)
		go func(p uuid.UUID) {
			defer wg.Done()
			id, apiErr := s.Push(gameUUID, p, []byte("turn"))
			assert.Nil(t, apiErr)
			ids <- id
		}(player)
	}
	wg.Wait()
	close(ids)

	var got []int64
	for id := range ids {
		got = append(got, id)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, got)
}

func TestPushRejectsNonMember(t *testing.T) {
	s, _, _ := newTestStore()
	gameUUID, _ := startGame(t, s, uuid.New())

	_, apiErr := s.Push(gameUUID, uuid.New(), []byte("turn"))
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.MissingPrivileges, apiErr.Code)
}

func TestPushBlobBounds(t *testing.T) {
	s, _, _ := newTestStore()
	alice := uuid.New()
	gameUUID, _ := startGame(t, s, alice)

	_, apiErr := s.Push(gameUUID, alice, nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.InvalidMessage, apiErr.Code)

	_, apiErr = s.Push(gameUUID, alice, make([]byte, models.MaxGameDataSize+1))
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.PayloadOverflow, apiErr.Code)

	overview, getErr := s.Overview(gameUUID, alice)
	require.Nil(t, getErr)
	assert.Equal(t, int64(0), overview.DataID)
}

func TestPushUnknownGame(t *testing.T) {
	s, _, _ := newTestStore()
	_, apiErr := s.Push(uuid.New(), uuid.New(), []byte("turn"))
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.GameNotFound, apiErr.Code)
}

func TestPushAnnouncesNewVersion(t *testing.T) {
	s, _, h := newTestStore()
	alice := uuid.New()
	bob := uuid.New()
	gameUUID, chatRoom := startGame(t, s, alice, bob)

	bobConn := &fakeConn{id: "bob-conn"}
	h.Subscribe(chatRoom.String(), bobConn)

	got, apiErr := s.Push(gameUUID, alice, []byte("turn"))
	require.Nil(t, apiErr)
	require.Equal(t, int64(1), got)

	require.Equal(t, []string{hub.EventGameDataChanged}, bobConn.received())
	payload, ok := bobConn.lastPayload().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, gameUUID, payload["game_uuid"])
	assert.Equal(t, int64(1), payload["data_id"])
	assert.Equal(t, alice, payload["updated_by"])
}

func TestGetReturnsLatestBlob(t *testing.T) {
	s, _, _ := newTestStore()
	alice := uuid.New()
	gameUUID, _ := startGame(t, s, alice)

	_, apiErr := s.Push(gameUUID, alice, []byte("first"))
	require.Nil(t, apiErr)
	_, apiErr = s.Push(gameUUID, alice, []byte("second"))
	require.Nil(t, apiErr)

	state, apiErr := s.Get(gameUUID, alice)
	require.Nil(t, apiErr)
	assert.Equal(t, int64(2), state.DataID)
	assert.Equal(t, []byte("second"), state.Data)
	assert.Equal(t, alice, state.LastPlayer.UUID)
}

func TestGetRequiresMembership(t *testing.T) {
	s, _, _ := newTestStore()
	gameUUID, _ := startGame(t, s, uuid.New())

	_, apiErr := s.Get(gameUUID, uuid.New())
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.MissingPrivileges, apiErr.Code)

	_, apiErr = s.Overview(gameUUID, uuid.New())
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.MissingPrivileges, apiErr.Code)
}

func TestOverviewsListsOnlyOwnGames(t *testing.T) {
	s, _, _ := newTestStore()
	alice := uuid.New()
	bob := uuid.New()
	startGame(t, s, alice)
	startGame(t, s, alice, bob)

	mine, apiErr := s.Overviews(alice)
	require.Nil(t, apiErr)
	assert.Len(t, mine, 2)

	theirs, apiErr := s.Overviews(bob)
	require.Nil(t, apiErr)
	assert.Len(t, theirs, 1)
}
