package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-driven setting of the server.
type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	Prod        bool          `env:"PROD" envDefault:"false"`
	SessionKey  string        `env:"KEY" envDefault:"insecure-dev-key"`
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"insecure-dev-secret"`
	MigrateDB   bool          `env:"MIGRATE_POSTGRES" envDefault:"false"`
	RedisURL    string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	GracePeriod time.Duration `env:"DISCONNECT_GRACE_PERIOD" envDefault:"30s"`

	Postgres PostgresConfig
}

// PostgresConfig mirrors the POSTGRES_* variables used by ConnectGORM.
type PostgresConfig struct {
	User     string `env:"POSTGRES_USER" envDefault:"tavern"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"tavern"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	Database string `env:"POSTGRES_DATABASE" envDefault:"tavern"`
	Verbose  bool   `env:"VERBOSE_POSTGRES" envDefault:"false"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
