// Package factory builds the configured storage backend.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/config"
	"github.com/nongjianweihao/share-car/internal/health"
	"github.com/nongjianweihao/share-car/internal/storage"
	"github.com/nongjianweihao/share-car/internal/storage/memory"
	"github.com/nongjianweihao/share-car/internal/storage/postgres"
	"github.com/nongjianweihao/share-car/internal/storage/redis"
	"github.com/nongjianweihao/share-car/internal/storage/sqlite"
)

// Backend is a storage backend that the health checker can ping.
type Backend interface {
	storage.Backend
	health.HealthPinger
}

// NewStorage selects the storage adapter named by cfg.StorageDriver.
// The caller owns the returned backend and must Close it.
func NewStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Backend, error) {
	log = log.With().Str("driver", cfg.StorageDriver).Logger()

	switch cfg.StorageDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath, sqlite.WithLogger(log))
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite storage ready")
		return s, nil
	case config.DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("%s_POSTGRES_DSN is required when STORAGE_DRIVER=postgres", config.Prefix)
		}
		return postgres.New(ctx, cfg.PostgresDSN, postgres.WithLogger(log))
	case config.DriverRedis:
		client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return redis.New(client, redis.WithLogger(log)), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER: %s", cfg.StorageDriver)
	}
}
