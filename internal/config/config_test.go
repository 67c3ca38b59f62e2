package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigLoad_Defaults(t *testing.T) {
	t.Setenv("SHARECAR_SQLITE_PATH", filepath.Join(t.TempDir(), "cards.db"))

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.StorageDriver != DriverSQLite || cfg.StorageKey != "share-car.cards" || cfg.HTTPPort != 8080 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Seed || !cfg.Watch {
		t.Fatalf("seed and watch should default to true: %+v", cfg)
	}
	if cfg.GetHTTPAddr() != ":8080" {
		t.Fatalf("addr = %s", cfg.GetHTTPAddr())
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("SHARECAR_STORAGE_DRIVER", "Redis")
	t.Setenv("SHARECAR_REDIS_ADDR", "cache:6380")
	t.Setenv("SHARECAR_HTTP_PORT", "9000")
	t.Setenv("SHARECAR_LOG_LEVEL", "warn")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.StorageDriver != DriverRedis || cfg.RedisAddr != "cache:6380" || cfg.HTTPPort != 9000 {
		t.Fatalf("env override failed: %+v", cfg)
	}
	if cfg.Level() != zerolog.WarnLevel {
		t.Fatalf("level = %v", cfg.Level())
	}
}

func TestResolveDefaults_DerivesSQLitePath(t *testing.T) {
	cfg := NewForTesting()
	cfg.StorageDriver = DriverSQLite
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasSuffix(cfg.SQLitePath, filepath.Join("share-car", "cards.db")) {
		t.Fatalf("sqlite path = %s", cfg.SQLitePath)
	}
}

func TestResolveDefaults_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown driver":       func(c *Config) { c.StorageDriver = "mongo" },
		"postgres without dsn": func(c *Config) { c.StorageDriver = DriverPostgres },
		"bad port":             func(c *Config) { c.HTTPPort = 70000 },
		"bad log level":        func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewForTesting()
			mutate(cfg)
			if err := cfg.ResolveDefaults(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewForTesting(t *testing.T) {
	cfg := NewForTesting()
	if !cfg.IsTesting() || cfg.IsProduction() {
		t.Fatalf("unexpected environment: %s", cfg.Environment)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("testing config should resolve: %v", err)
	}
}
