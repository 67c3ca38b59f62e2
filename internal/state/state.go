// Package state is the observable card store: it holds the loaded
// collection, the filtered view, selection and view preferences, and
// notifies subscribers after every transition.
package state

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/repository"
	"github.com/nongjianweihao/share-car/internal/storage"
)

// DefaultLoadError is recorded when a failure carries no message.
const DefaultLoadError = "无法加载卡片"

// Repository is the persistence surface the store drives.
type Repository interface {
	ListCards(ctx context.Context) ([]card.Card, error)
	SearchCards(ctx context.Context, opts repository.SearchOptions, source []card.Card) ([]card.Card, error)
	CreateCard(ctx context.Context, draft card.Draft) (card.Card, error)
	UpdateCard(ctx context.Context, c card.Card) (card.Card, error)
	DeleteCard(ctx context.Context, id string) error
	SaveMany(ctx context.Context, cards []card.Card) ([]card.Card, error)
	StorageKey() string
}

// State is an immutable snapshot handed to subscribers.
type State struct {
	Cards           []card.Card     `json:"cards"`
	FilteredCards   []card.Card     `json:"filteredCards"`
	SelectedCardID  string          `json:"selectedCardId,omitempty"`
	SearchQuery     string          `json:"searchQuery"`
	TagFilters      []string        `json:"tagFilters"`
	Loading         bool            `json:"loading"`
	Err             string          `json:"error,omitempty"`
	ViewPreferences ViewPreferences `json:"viewPreferences"`
}

func (s State) clone() State {
	s.Cards = card.CloneAll(s.Cards)
	s.FilteredCards = card.CloneAll(s.FilteredCards)
	s.TagFilters = slices.Clone(s.TagFilters)
	return s
}

// Listener receives a snapshot after each state change.
type Listener func(State)

type subscription struct {
	id int
	fn Listener
}

// Store is safe for concurrent use. Transitions are applied under a lock and
// listeners run after it is released, in registration order.
type Store struct {
	repo Repository
	log  zerolog.Logger

	initMu sync.Mutex

	mu        sync.Mutex
	state     State
	listeners []subscription
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithPreferences sets the initial view preferences.
func WithPreferences(p ViewPreferences) Option {
	return func(s *Store) { s.state.ViewPreferences = p }
}

// New creates a store over repo with an empty, not yet loaded state.
func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo: repo,
		log:  zerolog.Nop(),
		state: State{
			Cards:           []card.Card{},
			FilteredCards:   []card.Card{},
			TagFilters:      []string{},
			ViewPreferences: DefaultPreferences(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn and returns a func that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool { return sub.id == id })
		})
	}
}

// update applies fn under the lock. When fn returns false nothing changed
// and no one is notified.
func (s *Store) update(fn func(st *State) bool) bool {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return false
	}
	snap := s.state.clone()
	subs := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	return true
}

// Initialize loads the collection unless cards are already loaded.
// Concurrent first calls load once.
func (s *Store) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	loaded := len(s.state.Cards) > 0
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads the collection, recomputes the filtered view with the
// current criteria and re-resolves the selection.
func (s *Store) Refresh(ctx context.Context) error {
	s.update(func(st *State) bool {
		st.Loading = true
		st.Err = ""
		return true
	})

	cards, err := s.repo.ListCards(ctx)
	if err != nil {
		return s.fail("refresh", err)
	}

	for {
		query, tags := s.criteria()
		filtered, err := s.repo.SearchCards(ctx, repository.SearchOptions{Query: query, TagIDs: tags}, cards)
		if err != nil {
			return s.fail("refresh", err)
		}
		applied := s.update(func(st *State) bool {
			if st.SearchQuery != query || !slices.Equal(st.TagFilters, tags) {
				return false
			}
			st.Cards = card.CloneAll(cards)
			st.FilteredCards = filtered
			st.SelectedCardID = resolveSelectedCardID(filtered, st.SelectedCardID)
			st.Loading = false
			return true
		})
		if applied {
			return nil
		}
		// criteria changed while filtering; filter again with the new ones
	}
}

// SelectCard sets the selected card id. An empty id clears the selection.
func (s *Store) SelectCard(id string) {
	s.update(func(st *State) bool {
		st.SelectedCardID = id
		return true
	})
}

// SetSearchQuery records q and re-filters the loaded cards.
func (s *Store) SetSearchQuery(ctx context.Context, q string) error {
	var tags []string
	s.update(func(st *State) bool {
		st.SearchQuery = q
		tags = slices.Clone(st.TagFilters)
		return true
	})
	return s.applyFilters(ctx, q, tags)
}

// SetTagFilters records ids and re-filters the loaded cards.
func (s *Store) SetTagFilters(ctx context.Context, ids []string) error {
	tags := slices.Clone(ids)
	if tags == nil {
		tags = []string{}
	}
	var query string
	s.update(func(st *State) bool {
		st.TagFilters = slices.Clone(tags)
		query = st.SearchQuery
		return true
	})
	return s.applyFilters(ctx, query, tags)
}

// applyFilters filters the loaded cards without touching storage. The result
// is dropped if the criteria changed while filtering.
func (s *Store) applyFilters(ctx context.Context, query string, tags []string) error {
	s.mu.Lock()
	cards := card.CloneAll(s.state.Cards)
	s.mu.Unlock()

	filtered, err := s.repo.SearchCards(ctx, repository.SearchOptions{Query: query, TagIDs: tags}, cards)
	if err != nil {
		return s.fail("filter", err)
	}

	s.update(func(st *State) bool {
		if st.SearchQuery != query || !slices.Equal(st.TagFilters, tags) {
			return false
		}
		st.FilteredCards = filtered
		st.SelectedCardID = resolveSelectedCardID(filtered, st.SelectedCardID)
		return true
	})
	return nil
}

// CreateCard persists draft and reloads.
func (s *Store) CreateCard(ctx context.Context, draft card.Draft) (card.Card, error) {
	created, err := s.repo.CreateCard(ctx, draft)
	if err != nil {
		return card.Card{}, s.fail("create", err)
	}
	return created, s.Refresh(ctx)
}

// UpdateCard persists c and reloads.
func (s *Store) UpdateCard(ctx context.Context, c card.Card) (card.Card, error) {
	updated, err := s.repo.UpdateCard(ctx, c)
	if err != nil {
		return card.Card{}, s.fail("update", err)
	}
	return updated, s.Refresh(ctx)
}

// DeleteCard removes id and reloads.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return s.fail("delete", err)
	}
	return s.Refresh(ctx)
}

// SaveMany replaces the collection and reloads.
func (s *Store) SaveMany(ctx context.Context, cards []card.Card) error {
	if _, err := s.repo.SaveMany(ctx, cards); err != nil {
		return s.fail("save", err)
	}
	return s.Refresh(ctx)
}

// ListenToExternalChanges refreshes whenever another writer saves the
// repository's key. The returned func stops listening.
func (s *Store) ListenToExternalChanges(ctx context.Context, w storage.Watcher) (func(), error) {
	key := s.repo.StorageKey()
	return w.Watch(ctx, func(c storage.Change) {
		if c.Key != key {
			return
		}
		s.log.Debug().Str("key", c.Key).Str("origin", c.Origin).Msg("external change, refreshing")
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("refresh after external change failed")
		}
	})
}

// fail records err for passive observers and returns it to the caller.
func (s *Store) fail(op string, err error) error {
	msg := err.Error()
	if msg == "" {
		msg = DefaultLoadError
	}
	s.log.Error().Err(err).Str("op", op).Msg("card store action failed")
	s.update(func(st *State) bool {
		st.Loading = false
		st.Err = msg
		return true
	})
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) criteria() (string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SearchQuery, slices.Clone(s.state.TagFilters)
}

// resolveSelectedCardID keeps current when it is still a candidate,
// otherwise falls back to the first candidate.
func resolveSelectedCardID(candidates []card.Card, current string) string {
	if current != "" {
		for _, c := range candidates {
			if c.ID == current {
				return current
			}
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0].ID
}
