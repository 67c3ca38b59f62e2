// Package memory is an in-process storage backend. Several Storage handles
// opened on one Medium share data the way browser tabs share local storage.
package memory

import (
	"context"
	"sync"

	"github.com/nongjianweihao/share-car/internal/events"
	"github.com/nongjianweihao/share-car/internal/storage"
)

const busBuffer = 64

// Medium is the shared data and change bus behind one or more handles.
type Medium struct {
	mu   sync.RWMutex
	data map[string][]byte
	bus  *events.Bus[storage.Change]
}

// NewMedium creates an empty medium.
func NewMedium() *Medium {
	return &Medium{data: make(map[string][]byte), bus: events.NewBus[storage.Change](busBuffer)}
}

// Open returns a new handle with its own writer identity.
func (m *Medium) Open() *Storage {
	return &Storage{medium: m, origin: storage.NewOrigin()}
}

// New returns a handle on a fresh, private medium.
func New() *Storage { return NewMedium().Open() }

// Storage is one handle onto a Medium.
type Storage struct {
	medium *Medium
	origin string

	mu     sync.Mutex
	closed bool
}

var _ storage.Backend = (*Storage)(nil)

func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.medium.mu.RLock()
	defer s.medium.mu.RUnlock()
	v, ok := s.medium.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *Storage) Save(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.medium.mu.Lock()
	s.medium.data[key] = append([]byte(nil), value...)
	s.medium.mu.Unlock()
	s.medium.bus.Publish(storage.Change{Key: key, Origin: s.origin})
	return nil
}

// Watch forwards changes published by other handles on the same medium.
func (s *Storage) Watch(ctx context.Context, fn func(storage.Change)) (func(), error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	ch, cancel := s.medium.bus.Subscribe()
	ctx, stopCtx := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if evt.Origin == s.origin {
					continue
				}
				fn(evt)
			}
		}
	}()
	return func() {
		stopCtx()
		cancel()
		<-done
	}, nil
}

// HealthPing implements health.HealthPinger.
func (s *Storage) HealthPing(ctx context.Context) error { return s.check(ctx) }

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Storage) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}
