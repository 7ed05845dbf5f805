// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config is the service configuration.
type Config struct {
	Environment     string        `env:"ENV" envDefault:"development"`
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Store       string `env:"STORE" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"registration.db"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	CourseCacheTTL time.Duration `env:"COURSE_CACHE_TTL" envDefault:"10m"`
}

// Load reads an optional .env file, then parses the environment.
// It reports whether a .env file was loaded.
func Load(dotenvPath string) (*Config, bool, error) {
	loaded := godotenv.Load(dotenvPath) == nil

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, loaded, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, loaded, err
	}
	return &cfg, loaded, nil
}

// Validate checks that the selected store has what it needs.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE=postgres")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORE=sqlite")
		}
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	return nil
}

// CacheEnabled reports whether a Redis course cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}
