package main

import (
	"log"

	"Tavern/config"
	_ "Tavern/config/swagger"
	"Tavern/middleware"
	"Tavern/routes"
	"Tavern/services/chat"
	"Tavern/services/gamestate"
	"Tavern/services/hub"
	"Tavern/services/lobby"
	"Tavern/services/redis"
	"Tavern/services/sessions"
	"Tavern/services/social"
	"Tavern/services/socket_io"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// @title Tavern API
// @version 1.0
// @description Gin-Gonic lobby and session coordination server for the "Tavern" game API
// @BasePath /
func main() {
	godotenv.Load()
	log.Println("Setting up server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if cfg.Prod {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := config.ConnectGORM(cfg.Postgres)
	if err != nil {
		log.Fatalf("Error connecting to PostgreSQL: %v", err)
	}
	log.Println("GORM Connected")

	// Only migrate in development or during deployment
	if cfg.MigrateDB {
		log.Println("Migrating PostgreSQL database...")
		if err := config.MigrateDatabase(gormDB); err != nil {
			log.Printf("Warning: Database migration failed: %v", err)
		} else {
			log.Println("Database migrated successfully")
		}
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("Error reading GORM PostgreSQL instance: %v", err)
	}
	defer sqlDB.Close()

	redisClient, err := config.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Error connecting to Redis: %v", err)
	}
	log.Println("Connection to Redis successful")
	defer redis.CloseRedis(redisClient)

	h := hub.New()
	registry := sessions.NewRegistry(cfg.GracePeriod)
	defer registry.Close()

	relay := chat.NewRelay(gormDB, redisClient, h)
	store := gamestate.NewStore(gormDB, redisClient, h)
	manager := lobby.NewManager(h, registry, relay, store)
	graph := social.NewGraph(gormDB, registry, h, relay, manager)

	r := gin.Default()

	middleware.SetUpMiddleware(r, cfg.SessionKey)

	routes.SetupRoutes(r, gormDB, cfg.JWTSecret, manager, relay, store, graph)

	sio := &socket_io.MySocketServer{}
	sio.Start(r, gormDB, cfg.JWTSecret, registry, h, manager, relay)
	defer sio.Close()

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
}
