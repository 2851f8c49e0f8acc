package redis

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient handles Redis operations. Redis only ever holds caches of
// durable state (game blobs, last-message pointers), never the source of
// truth.
type RedisClient struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(addr string, db int) *RedisClient {
	var client *redis.Client
	if addr != "localhost:6379" {
		log.Println("Connecting to remote Redis...")
		opt, err := redis.ParseURL(addr)
		if err != nil {
			panic("Error parsing Redis URL")
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		})
	}
	return &RedisClient{
		Client: client,
		Ctx:    context.Background(),
	}
}

const gameDataTTL = 24 * time.Hour

// SetGameData caches the opaque state blob of a game under its current
// data id.
func (rc *RedisClient) SetGameData(gameUUID uuid.UUID, dataID int64, blob []byte) error {
	pipe := rc.Client.TxPipeline()
	pipe.Set(rc.Ctx, gameDataKey(gameUUID), blob, gameDataTTL)
	pipe.Set(rc.Ctx, gameDataIDKey(gameUUID), dataID, gameDataTTL)
	_, err := pipe.Exec(rc.Ctx)
	return err
}

// GetGameData returns the cached blob of a game if the cached version
// matches dataID. A cache miss is reported as redis.Nil.
func (rc *RedisClient) GetGameData(gameUUID uuid.UUID, dataID int64) ([]byte, error) {
	cachedID, err := rc.Client.Get(rc.Ctx, gameDataIDKey(gameUUID)).Int64()
	if err != nil {
		return nil, err
	}
	if cachedID != dataID {
		return nil, redis.Nil
	}
	return rc.Client.Get(rc.Ctx, gameDataKey(gameUUID)).Bytes()
}

// DeleteGameData drops the cached blob of a game.
func (rc *RedisClient) DeleteGameData(gameUUID uuid.UUID) error {
	return rc.Client.Del(rc.Ctx, gameDataKey(gameUUID), gameDataIDKey(gameUUID)).Err()
}

// SetLastMessage caches the uuid of the most recent message of a chat room.
func (rc *RedisClient) SetLastMessage(roomUUID, messageUUID uuid.UUID) error {
	return rc.Client.Set(rc.Ctx, lastMessageKey(roomUUID), messageUUID.String(), 0).Err()
}

// GetLastMessage returns the cached last-message pointer of a chat room.
func (rc *RedisClient) GetLastMessage(roomUUID uuid.UUID) (uuid.UUID, error) {
	val, err := rc.Client.Get(rc.Ctx, lastMessageKey(roomUUID)).Result()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(val)
}

// CleanupKeys removes the specified keys from Redis
func (rc *RedisClient) CleanupKeys(keys []string) error {
	for _, key := range keys {
		if err := rc.Client.Del(rc.Ctx, key).Err(); err != nil {
			return err
		}
	}
	return nil
}
