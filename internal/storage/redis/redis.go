// Package redis stores card collections in Redis and announces writes on a
// pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/storage"
)

// DefaultChannel carries storage.Change payloads.
const DefaultChannel = "sharecar:changes"

// Storage implements storage.Backend with GET/SET and PUBLISH/SUBSCRIBE.
type Storage struct {
	client  *goredis.Client
	channel string
	origin  string
	log     zerolog.Logger
}

var _ storage.Backend = (*Storage)(nil)

// Option configures a Storage.
type Option func(*Storage)

// WithChannel overrides the pub/sub channel.
func WithChannel(channel string) Option {
	return func(s *Storage) { s.channel = channel }
}

// WithLogger sets the logger used for subscription diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Storage) { s.log = log }
}

// WithOrigin overrides the writer identity.
func WithOrigin(origin string) Option {
	return func(s *Storage) { s.origin = origin }
}

// NewClient creates a client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

// New wraps client.
func New(client *goredis.Client, opts ...Option) *Storage {
	s := &Storage{client: client, channel: DefaultChannel, origin: storage.NewOrigin(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load %s: %w", key, err)
	}
	return v, nil
}

// Save writes the value and publishes the change in one MULTI/EXEC.
func (s *Storage) Save(ctx context.Context, key string, value []byte) error {
	payload, err := json.Marshal(storage.Change{Key: key, Origin: s.origin})
	if err != nil {
		return fmt.Errorf("redis: save %s: encode change: %w", key, err)
	}
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, key, value, 0)
		p.Publish(ctx, s.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: save %s: %w", key, err)
	}
	return nil
}

// Watch subscribes to the change channel. It returns once the subscription
// is confirmed so no later write is missed.
func (s *Storage) Watch(ctx context.Context, fn func(storage.Change)) (func(), error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", s.channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	msgs := sub.Channel()
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change storage.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.log.Warn().Err(err).Str("payload", msg.Payload).Msg("redis: malformed change payload")
					continue
				}
				if change.Origin == s.origin {
					continue
				}
				fn(change)
			}
		}
	}()

	return func() {
		cancel()
		_ = sub.Close()
		<-done
	}, nil
}

// HealthPing implements health.HealthPinger.
func (s *Storage) HealthPing(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) Close() error { return s.client.Close() }
