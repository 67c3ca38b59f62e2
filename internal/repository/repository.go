// Package repository is the sole authority over the persisted card
// collection: seeding, CRUD, bulk replace and search.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/seed"
	"github.com/nongjianweihao/share-car/internal/storage"
)

// maxIDAttempts bounds regeneration when a generated id collides.
const maxIDAttempts = 8

// Repository reads and rewrites the whole collection under one storage key.
// Calls on one Repository are serialized; separate processes sharing the
// same storage still race with last-write-wins.
type Repository struct {
	storage storage.Storage
	key     string
	now     func() time.Time
	ids     card.IDGenerator
	blocks  func() string
	seed    []card.Card
	log     zerolog.Logger

	mu     sync.Mutex
	seeded bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithKey overrides the storage key (default storage.DefaultKey).
func WithKey(key string) Option {
	return func(r *Repository) { r.key = key }
}

// WithClock injects the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator injects the card id source.
func WithIDGenerator(ids card.IDGenerator) Option {
	return func(r *Repository) { r.ids = ids }
}

// WithBlockIDs injects the id source for blocks saved without an id.
func WithBlockIDs(fn func() string) Option {
	return func(r *Repository) { r.blocks = fn }
}

// WithSeed replaces the built-in seed set. nil or empty disables seeding.
func WithSeed(cards []card.Card) Option {
	return func(r *Repository) { r.seed = card.CloneAll(cards) }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Repository) { r.log = log }
}

// New creates a repository over s seeded with the built-in card set.
func New(s storage.Storage, opts ...Option) *Repository {
	r := &Repository{
		storage: s,
		key:     storage.DefaultKey,
		now:     time.Now,
		ids:     card.DefaultIDs,
		blocks:  card.NewBlockID,
		seed:    seed.MustCards(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StorageKey returns the key holding the collection.
func (r *Repository) StorageKey() string { return r.key }

// ListCards returns non-archived cards, most recently updated first.
func (r *Repository) ListCards(ctx context.Context) ([]card.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(ctx)
}

// GetCard returns the card with id, archived or not.
func (r *Repository) GetCard(ctx context.Context, id string) (card.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cards, err := r.loadLocked(ctx)
	if err != nil {
		return card.Card{}, err
	}
	for _, c := range cards {
		if c.ID == id {
			return c, nil
		}
	}
	return card.Card{}, card.NewNotFoundError("id", fmt.Sprintf("card %q not found", id))
}

// CreateCard materializes draft, appends it and persists the collection.
func (r *Repository) CreateCard(ctx context.Context, draft card.Draft) (card.Card, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return card.Card{}, card.NewValidationError("title", "title is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cards, err := r.loadLocked(ctx)
	if err != nil {
		return card.Card{}, err
	}
	existing := make(map[string]struct{}, len(cards))
	for _, c := range cards {
		existing[c.ID] = struct{}{}
	}

	draft.ID = strings.TrimSpace(draft.ID)
	if draft.ID != "" {
		if _, dup := existing[draft.ID]; dup {
			return card.Card{}, card.NewConflictError("id", fmt.Sprintf("card %q already exists", draft.ID))
		}
	} else {
		id, err := r.freshID(existing)
		if err != nil {
			return card.Card{}, err
		}
		draft.ID = id
	}

	now := r.timestamp()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	created, err := card.New(draft, now, r.ids, card.WithBlockIDs(r.blocks))
	if err != nil {
		return card.Card{}, err
	}

	if err := r.writeLocked(ctx, append(cards, created)); err != nil {
		return card.Card{}, err
	}
	r.log.Debug().Str("card_id", created.ID).Msg("card created")
	return created.Clone(), nil
}

// UpdateCard replaces the stored card with the same id and refreshes its
// UpdatedAt. The refreshed value is always later than the previous one.
func (r *Repository) UpdateCard(ctx context.Context, c card.Card) (card.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cards, err := r.loadLocked(ctx)
	if err != nil {
		return card.Card{}, err
	}
	idx := -1
	for i := range cards {
		if cards[i].ID == c.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return card.Card{}, card.NewNotFoundError("id", fmt.Sprintf("card %q not found", c.ID))
	}
	prev := cards[idx]

	if c.CreatedAt.IsZero() {
		c.CreatedAt = prev.CreatedAt
	}
	updated, err := card.Normalize(c, card.WithBlockIDs(r.blocks))
	if err != nil {
		return card.Card{}, err
	}
	updated.UpdatedAt = laterOf(r.timestamp(), prev.UpdatedAt.Add(time.Nanosecond), updated.CreatedAt)

	cards[idx] = updated
	if err := r.writeLocked(ctx, cards); err != nil {
		return card.Card{}, err
	}
	r.log.Debug().Str("card_id", updated.ID).Msg("card updated")
	return updated.Clone(), nil
}

// DeleteCard removes the card with id. Unknown ids are a no-op.
func (r *Repository) DeleteCard(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cards, err := r.loadLocked(ctx)
	if err != nil {
		return err
	}
	kept := cards[:0]
	for _, c := range cards {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(cards) {
		return nil
	}
	if err := r.writeLocked(ctx, kept); err != nil {
		return err
	}
	r.log.Debug().Str("card_id", id).Msg("card deleted")
	return nil
}

// SaveMany replaces the whole collection with cards and returns the
// reloaded ListCards result. Every card passes through the factory; later
// duplicates of an id are dropped. Nothing is written if any card is invalid.
func (r *Repository) SaveMany(ctx context.Context, cards []card.Card) ([]card.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureSeedLocked(ctx); err != nil {
		return nil, err
	}

	out := make([]card.Card, 0, len(cards))
	seen := make(map[string]struct{}, len(cards))
	now := r.timestamp()
	for i, c := range cards {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		n, err := card.Normalize(c, card.WithBlockIDs(r.blocks))
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		if _, dup := seen[n.ID]; dup {
			r.log.Warn().Str("card_id", n.ID).Msg("dropping duplicate card id in bulk save")
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}

	if err := r.writeLocked(ctx, out); err != nil {
		return nil, err
	}
	return r.listLocked(ctx)
}

func (r *Repository) listLocked(ctx context.Context) ([]card.Card, error) {
	cards, err := r.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]card.Card, 0, len(cards))
	for _, c := range cards {
		if !c.Archived {
			visible = append(visible, c)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].UpdatedAt.After(visible[j].UpdatedAt)
	})
	return visible, nil
}

// loadLocked seeds on first use, then reads the full collection.
func (r *Repository) loadLocked(ctx context.Context) ([]card.Card, error) {
	if err := r.ensureSeedLocked(ctx); err != nil {
		return nil, err
	}
	return r.readLocked(ctx)
}

// ensureSeedLocked writes the seed set once per instance when the stored
// collection is empty. A failed read leaves the instance unseeded.
func (r *Repository) ensureSeedLocked(ctx context.Context) error {
	if r.seeded {
		return nil
	}
	cards, err := r.readLocked(ctx)
	if err != nil {
		return err
	}
	if len(cards) == 0 && len(r.seed) > 0 {
		if err := r.writeLocked(ctx, card.CloneAll(r.seed)); err != nil {
			return err
		}
		r.log.Info().Int("count", len(r.seed)).Str("key", r.key).Msg("seeded card collection")
	}
	r.seeded = true
	return nil
}

func (r *Repository) readLocked(ctx context.Context) ([]card.Card, error) {
	raw, err := r.storage.Load(ctx, r.key)
	if err != nil {
		r.log.Error().Stack().Err(err).Str("key", r.key).Msg("storage read failed")
		return nil, card.NewStorageError("read", err)
	}
	cards, err := card.DecodeCollection(raw)
	if err != nil {
		r.log.Error().Stack().Err(err).Str("key", r.key).Msg("stored collection is corrupt")
		return nil, card.NewStorageError("decode", err)
	}
	return cards, nil
}

func (r *Repository) writeLocked(ctx context.Context, cards []card.Card) error {
	data, err := card.EncodeCollection(cards)
	if err != nil {
		return card.NewStorageError("encode", err)
	}
	if err := r.storage.Save(ctx, r.key, data); err != nil {
		r.log.Error().Stack().Err(err).Str("key", r.key).Msg("storage write failed")
		return card.NewStorageError("write", err)
	}
	return nil
}

func (r *Repository) freshID(existing map[string]struct{}) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := r.ids.NewID()
		if _, dup := existing[id]; !dup && id != "" {
			return id, nil
		}
	}
	return "", card.NewConflictError("id", "id generator keeps producing existing ids")
}

// timestamp strips the monotonic reading so stored and reloaded values compare equal.
func (r *Repository) timestamp() time.Time {
	return r.now().Round(0).UTC()
}

func laterOf(ts ...time.Time) time.Time {
	out := ts[0]
	for _, t := range ts[1:] {
		if t.After(out) {
			out = t
		}
	}
	return out
}
