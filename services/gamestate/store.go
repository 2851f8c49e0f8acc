package gamestate

import (
	"errors"
	"log"
	"sync"
	"time"

	models "Tavern/models/postgres"
	"Tavern/services/apierror"
	"Tavern/services/hub"
	"Tavern/services/redis"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Player is the account shape embedded in game responses.
type Player struct {
	UUID        uuid.UUID `json:"uuid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

// Overview is the shortened game state: enough for a client to compare its
// last known data id against the server's and decide whether to fetch the
// blob. It never carries the blob itself.
type Overview struct {
	UUID         uuid.UUID `json:"uuid"`
	DataID       int64     `json:"data_id"`
	Name         string    `json:"name"`
	MaxPlayers   int       `json:"max_players"`
	LastActivity time.Time `json:"last_activity"`
	LastPlayer   Player    `json:"last_player"`
	ChatRoomUUID uuid.UUID `json:"chat_room_uuid"`
}

// FullState is the overview plus the opaque blob.
type FullState struct {
	Overview
	Data []byte `json:"game_data"`
}

// ledger is the persistence behind the store. gormLedger is the production
// implementation; a missing game surfaces as gorm.ErrRecordNotFound.
type ledger interface {
	create(game *models.Game, members []uuid.UUID) error
	load(gameUUID uuid.UUID) (*models.Game, error)
	isMember(gameUUID, account uuid.UUID) (bool, error)
	byPlayer(account uuid.UUID) ([]models.Game, error)
	saveState(gameUUID uuid.UUID, blob []byte, dataID int64, updater uuid.UUID, at time.Time) error
}

// Store is the versioned blob ledger. The blob is uninterpreted bytes;
// writes are last-write-wins with no conflict detection, but the version
// counter is monotonic and gapless: every accepted push increments data_id
// by exactly 1. Pushes on the same game are serialized per game, and every
// accepted push is announced to the game's members over the hub.
type Store struct {
	ledger ledger
	rdb    *redis.RedisClient
	hub    *hub.Hub

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewStore(db *gorm.DB, rdb *redis.RedisClient, h *hub.Hub) *Store {
	return newStore(&gormLedger{db: db}, rdb, h)
}

func newStore(l ledger, rdb *redis.RedisClient, h *hub.Hub) *Store {
	return &Store{
		ledger: l,
		rdb:    rdb,
		hub:    h,
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) gameLock(gameUUID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[gameUUID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[gameUUID] = l
	}
	return l
}

// Create materializes a game from a starting lobby: data_id starts at 0,
// the membership snapshot is fixed once and the lobby's chat room is
// inherited.
func (s *Store) Create(name string, maxPlayers int, chatRoom uuid.UUID, startedBy uuid.UUID, members []uuid.UUID) (uuid.UUID, error) {
	game := models.Game{
		UUID:          uuid.New(),
		Name:          name,
		MaxPlayers:    maxPlayers,
		ChatRoomUUID:  chatRoom,
		UpdatedByUUID: startedBy,
		UpdatedAt:     time.Now(),
	}
	if err := s.ledger.create(&game, members); err != nil {
		return uuid.Nil, err
	}
	return game.UUID, nil
}

// IsMember reports whether an account plays in a game.
func (s *Store) IsMember(gameUUID, account uuid.UUID) (bool, error) {
	return s.ledger.isMember(gameUUID, account)
}

// Push replaces the game's blob with the new one, last-write-wins, and
// increments data_id by exactly 1. The new version is announced to the
// game's chat room, which every member's live connection subscribes to, so
// clients learn about a finished turn without polling. Returns the new
// data_id.
func (s *Store) Push(gameUUID uuid.UUID, updater uuid.UUID, blob []byte) (int64, *apierror.ApiError) {
	if len(blob) == 0 {
		return 0, apierror.Of(apierror.InvalidMessage)
	}
	if len(blob) > models.MaxGameDataSize {
		return 0, apierror.Of(apierror.PayloadOverflow)
	}

	lock := s.gameLock(gameUUID)
	lock.Lock()
	defer lock.Unlock()

	game, err := s.ledger.load(gameUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apierror.Of(apierror.GameNotFound)
		}
		return 0, apierror.Of(apierror.DatabaseError)
	}
	isMember, err := s.ledger.isMember(gameUUID, updater)
	if err != nil {
		return 0, apierror.Of(apierror.DatabaseError)
	}
	if !isMember {
		return 0, apierror.Of(apierror.MissingPrivileges)
	}

	newID := game.DataID + 1
	now := time.Now()
	if err := s.ledger.saveState(gameUUID, blob, newID, updater, now); err != nil {
		log.Printf("[GAME-ERROR] pushing state for %s: %v", gameUUID, err)
		return 0, apierror.Of(apierror.DatabaseError)
	}

	// Cache is best-effort, postgres stays authoritative.
	if s.rdb != nil {
		if err := s.rdb.SetGameData(gameUUID, newID, blob); err != nil {
			log.Printf("[GAME] blob cache update failed: %v", err)
		}
	}

	s.hub.Publish(game.ChatRoomUUID.String(), hub.EventGameDataChanged, map[string]any{
		"game_uuid":  gameUUID,
		"data_id":    newID,
		"updated_by": updater,
		"updated_at": now,
	})
	return newID, nil
}

// Overviews returns the shortened state of every game the caller
// participates in.
func (s *Store) Overviews(caller uuid.UUID) ([]Overview, *apierror.ApiError) {
	games, err := s.ledger.byPlayer(caller)
	if err != nil {
		return nil, apierror.Of(apierror.DatabaseError)
	}

	out := make([]Overview, len(games))
	for i, g := range games {
		out[i] = overviewOf(&g)
	}
	return out, nil
}

// Overview returns the shortened state of a single game.
func (s *Store) Overview(gameUUID uuid.UUID, caller uuid.UUID) (Overview, *apierror.ApiError) {
	game, apiErr := s.loadFor(gameUUID, caller)
	if apiErr != nil {
		return Overview{}, apiErr
	}
	return overviewOf(game), nil
}

// Get returns the full state including the blob, served from the redis
// cache when it holds the current version.
func (s *Store) Get(gameUUID uuid.UUID, caller uuid.UUID) (FullState, *apierror.ApiError) {
	game, apiErr := s.loadFor(gameUUID, caller)
	if apiErr != nil {
		return FullState{}, apiErr
	}

	data := game.Data
	if s.rdb != nil {
		if cached, err := s.rdb.GetGameData(gameUUID, game.DataID); err == nil {
			data = cached
		}
	}
	return FullState{Overview: overviewOf(game), Data: data}, nil
}

func (s *Store) loadFor(gameUUID uuid.UUID, caller uuid.UUID) (*models.Game, *apierror.ApiError) {
	game, err := s.ledger.load(gameUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Of(apierror.GameNotFound)
		}
		return nil, apierror.Of(apierror.DatabaseError)
	}
	isMember, err := s.ledger.isMember(gameUUID, caller)
	if err != nil {
		return nil, apierror.Of(apierror.DatabaseError)
	}
	if !isMember {
		return nil, apierror.Of(apierror.MissingPrivileges)
	}
	return game, nil
}

func overviewOf(g *models.Game) Overview {
	return Overview{
		UUID:         g.UUID,
		DataID:       g.DataID,
		Name:         g.Name,
		MaxPlayers:   g.MaxPlayers,
		LastActivity: g.UpdatedAt,
		LastPlayer: Player{
			UUID:        g.UpdatedByUUID,
			Username:    g.UpdatedBy.Username,
			DisplayName: g.UpdatedBy.DisplayName,
		},
		ChatRoomUUID: g.ChatRoomUUID,
	}
}

// gormLedger is the postgres-backed ledger.
type gormLedger struct {
	db *gorm.DB
}

func (l *gormLedger) create(game *models.Game, members []uuid.UUID) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(game).Error; err != nil {
			return err
		}
		for _, m := range members {
			row := models.GameMember{GameUUID: game.UUID, PlayerUUID: m}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *gormLedger) load(gameUUID uuid.UUID) (*models.Game, error) {
	var game models.Game
	if err := l.db.Preload("UpdatedBy").First(&game, "uuid = ?", gameUUID).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

func (l *gormLedger) isMember(gameUUID, account uuid.UUID) (bool, error) {
	var count int64
	err := l.db.Model(&models.GameMember{}).
		Where("game_uuid = ? AND player_uuid = ?", gameUUID, account).
		Count(&count).Error
	return count > 0, err
}

func (l *gormLedger) byPlayer(account uuid.UUID) ([]models.Game, error) {
	var games []models.Game
	err := l.db.Preload("UpdatedBy").
		Joins("JOIN game_members ON game_members.game_uuid = games.uuid").
		Where("game_members.player_uuid = ?", account).
		Find(&games).Error
	return games, err
}

func (l *gormLedger) saveState(gameUUID uuid.UUID, blob []byte, dataID int64, updater uuid.UUID, at time.Time) error {
	return l.db.Model(&models.Game{}).
		Where("uuid = ?", gameUUID).
		Updates(map[string]any{
			"data":            blob,
			"data_id":         dataID,
			"updated_by_uuid": updater,
			"updated_at":      at,
		}).Error
}
