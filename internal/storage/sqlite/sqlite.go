// Package sqlite stores card collections in a local SQLite file and reports
// writes from other processes by watching the database and WAL files.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/storage"
)

// ErrWatchUnsupported is returned by Watch on an in-memory database.
var ErrWatchUnsupported = errors.New("sqlite: watch requires a file-backed database")

// SettleDelay is how long Watch waits after the last file event before scanning.
var SettleDelay = 25 * time.Millisecond

// Storage implements storage.Backend on a kv_store table.
type Storage struct {
	db     *sql.DB
	path   string
	origin string
	log    zerolog.Logger
	now    func() time.Time
}

var _ storage.Backend = (*Storage)(nil)

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger used for watch diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Storage) { s.log = log }
}

// WithOrigin overrides the writer identity.
func WithOrigin(origin string) Option {
	return func(s *Storage) { s.origin = origin }
}

// New opens and migrates the database at path.
func New(path string, opts ...Option) (*Storage, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db, path, opts...), nil
}

// NewWithDB wires an existing, migrated connection. path is only used by Watch.
func NewWithDB(db *sql.DB, path string, opts ...Option) *Storage {
	s := &Storage{
		db:     db,
		path:   path,
		origin: storage.NewOrigin(),
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying *sql.DB connection.
func (s *Storage) DB() *sql.DB { return s.db }

func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *Storage) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, origin, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			origin = excluded.origin,
			version = kv_store.version + 1,
			updated_at = excluded.updated_at
	`, key, string(value), s.origin, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", key, err)
	}
	return nil
}

// HealthPing implements health.HealthPinger.
func (s *Storage) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error { return s.db.Close() }

type rowVersion struct {
	origin  string
	version int64
}

// Watch reports rows whose version advanced since the last scan and whose
// last writer is not this handle. Scans run on every file system event
// touching the database or its WAL file.
func (s *Storage) Watch(ctx context.Context, fn func(storage.Change)) (func(), error) {
	if s.path == "" || s.path == MemoryPath {
		return nil, ErrWatchUnsupported
	}

	seen, err := s.versions(ctx)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("sqlite: watch: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("sqlite: watch %s: %w", filepath.Dir(s.path), err)
	}

	base := filepath.Base(s.path)
	relevant := map[string]bool{base: true, base + "-wal": true}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = w.Close() }()

		// a commit touches the WAL several times; scan once it settles
		settle := time.NewTimer(time.Hour)
		settle.Stop()
		defer settle.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if relevant[filepath.Base(evt.Name)] && (evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create)) {
					settle.Reset(SettleDelay)
				}
			case <-settle.C:
				s.scan(ctx, seen, fn)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Str("path", s.path).Msg("sqlite watcher error")
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (s *Storage) scan(ctx context.Context, seen map[string]rowVersion, fn func(storage.Change)) {
	current, err := s.versions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Str("path", s.path).Msg("sqlite watch scan failed")
		}
		return
	}
	for key, rv := range current {
		if prev, ok := seen[key]; ok && prev.version >= rv.version {
			continue
		}
		seen[key] = rv
		if rv.origin == s.origin {
			continue
		}
		fn(storage.Change{Key: key, Origin: rv.origin})
	}
}

func (s *Storage) versions(ctx context.Context) (map[string]rowVersion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, origin, version FROM kv_store`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]rowVersion)
	for rows.Next() {
		var key string
		var rv rowVersion
		if err := rows.Scan(&key, &rv.origin, &rv.version); err != nil {
			return nil, fmt.Errorf("sqlite: scan versions: %w", err)
		}
		out[key] = rv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan versions: %w", err)
	}
	return out, nil
}
