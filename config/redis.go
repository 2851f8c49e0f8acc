package config

import (
	"Tavern/services/redis"
	"log"
)

// ConnectRedis connects the typed redis wrapper used for volatile caches.
func ConnectRedis(redisURL string) (*redis.RedisClient, error) {
	redisClient, err := redis.InitRedis(redisURL, 0)
	if err != nil {
		log.Printf("Error connecting to Redis: %v", err)
		return nil, err
	}
	log.Println("Redis connection established")
	return redisClient, nil
}
