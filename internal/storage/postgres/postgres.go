// Package postgres stores card collections in PostgreSQL and fans writes out
// to other processes with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/storage"
)

// Channel is the NOTIFY channel carrying storage.Change payloads.
const Channel = "sharecar_changes"

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the collection table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS card_collections (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			origin TEXT NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Storage implements storage.Backend on the card_collections table.
type Storage struct {
	db     *sql.DB
	dsn    string
	origin string
	log    zerolog.Logger
}

var _ storage.Backend = (*Storage)(nil)

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger used for listener diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Storage) { s.log = log }
}

// WithOrigin overrides the writer identity.
func WithOrigin(origin string) Option {
	return func(s *Storage) { s.origin = origin }
}

// New opens, migrates and wraps the database at dsn.
func New(ctx context.Context, dsn string, opts ...Option) (*Storage, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db, dsn, opts...), nil
}

// NewWithDB wires an existing connection. dsn is only used by Watch, which
// needs a dedicated connection for LISTEN.
func NewWithDB(db *sql.DB, dsn string, opts ...Option) *Storage {
	s := &Storage{db: db, dsn: dsn, origin: storage.NewOrigin(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM card_collections WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load %s: %w", key, err)
	}
	return value, nil
}

// Save upserts the value and notifies listeners in the same transaction, so
// a notification is only delivered once the write is visible.
func (s *Storage) Save(ctx context.Context, key string, value []byte) error {
	payload, err := json.Marshal(storage.Change{Key: key, Origin: s.origin})
	if err != nil {
		return fmt.Errorf("postgres: save %s: encode change: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: save %s: begin: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO card_collections (key, value, origin, version, updated_at)
		VALUES ($1, $2::jsonb, $3, 1, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			origin = EXCLUDED.origin,
			version = card_collections.version + 1,
			updated_at = now()
	`, key, string(value), s.origin)
	if err != nil {
		return fmt.Errorf("postgres: save %s: upsert: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
		return fmt.Errorf("postgres: save %s: notify: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: save %s: commit: %w", key, err)
	}
	return nil
}

// Watch opens a dedicated connection, LISTENs on Channel and forwards
// notifications from other writers.
func (s *Storage) Watch(ctx context.Context, fn func(storage.Change)) (func(), error) {
	if s.dsn == "" {
		return nil, fmt.Errorf("postgres: watch: DSN is empty")
	}
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: watch: connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("postgres: watch: listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = conn.Close(context.Background()) }()
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Error().Err(err).Msg("postgres listener stopped")
				}
				return
			}
			var change storage.Change
			if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
				s.log.Warn().Err(err).Str("payload", n.Payload).Msg("postgres: malformed change payload")
				continue
			}
			if change.Origin == s.origin {
				continue
			}
			fn(change)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

// HealthPing implements health.HealthPinger.
func (s *Storage) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error { return s.db.Close() }
