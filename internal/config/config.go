package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nongjianweihao/share-car/internal/storage"
)

// Prefix is the environment variable prefix, e.g. SHARECAR_HTTP_PORT.
const Prefix = "SHARECAR"

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds the configuration for the card service and CLI.
// Environment variables are parsed from the SHARECAR_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
	StorageKey    string `envconfig:"STORAGE_KEY" default:"share-car.cards"`

	// SQLite; empty derives a path under the user config dir
	SQLitePath string `envconfig:"SQLITE_PATH" default:""`

	// Postgres
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Redis
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Seed inserts the built-in cards into an empty collection.
	Seed bool `envconfig:"SEED" default:"true"`
	// Watch resyncs the in-process store when another writer saves.
	Watch bool `envconfig:"WATCH" default:"true"`

	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ResolveDefaults validates the storage driver and derives driver-specific settings.
func (c *Config) ResolveDefaults() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if c.StorageDriver == "" {
		c.StorageDriver = DriverSQLite
	}
	if c.StorageKey == "" {
		c.StorageKey = storage.DefaultKey
	}

	switch c.StorageDriver {
	case DriverMemory, DriverRedis:
	case DriverSQLite:
		if c.SQLitePath == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				dir = os.TempDir()
			}
			c.SQLitePath = filepath.Join(dir, "share-car", "cards.db")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s_POSTGRES_DSN is required when STORAGE_DRIVER=postgres", Prefix)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER: %s", c.StorageDriver)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.HealthIntervalSeconds <= 0 {
		c.HealthIntervalSeconds = 30
	}
	if c.HealthProbeTimeoutSeconds <= 0 {
		c.HealthProbeTimeoutSeconds = 2
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Example: SHARECAR_STORAGE_DRIVER, SHARECAR_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("environment", string(cfg.Environment)).
		Str("storage_driver", cfg.StorageDriver).
		Str("storage_key", cfg.StorageKey).
		Str("sqlite_path", cfg.SQLitePath).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Str("redis_addr", cfg.RedisAddr).
		Int("port", cfg.HTTPPort).
		Bool("seed", cfg.Seed).
		Bool("watch", cfg.Watch).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		StorageDriver:             DriverMemory,
		StorageKey:                storage.DefaultKey,
		RedisAddr:                 "localhost:6379",
		HTTPPort:                  8080,
		Seed:                      true,
		Watch:                     true,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		LogLevel:                  "debug",
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
