// Package workspace is the card editor: a draft of one card with undo and
// redo history, block editing and saving through the card store.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/state"
)

// UntitledTitle is the title of a fresh draft.
const UntitledTitle = "未命名卡片"

// Store is the part of the card store a session drives.
type Store interface {
	State() state.State
	CreateCard(ctx context.Context, draft card.Draft) (card.Card, error)
	UpdateCard(ctx context.Context, c card.Card) (card.Card, error)
	DeleteCard(ctx context.Context, id string) error
	SelectCard(id string)
}

// Session edits at most one draft at a time. It is not safe for
// concurrent use.
type Session struct {
	store    Store
	ids      card.IDGenerator
	blockIDs func() string
	now      func() time.Time
	log      zerolog.Logger

	draft   *card.Card
	saved   *card.Card
	isNew   bool
	history []card.Card
	future  []card.Card
}

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator sets the generator for new card ids.
func WithIDGenerator(ids card.IDGenerator) Option {
	return func(s *Session) { s.ids = ids }
}

// WithBlockIDs sets the generator for new block ids.
func WithBlockIDs(fn func() string) Option {
	return func(s *Session) { s.blockIDs = fn }
}

// WithClock sets the time source for new drafts.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New creates an empty session over store.
func New(store Store, opts ...Option) *Session {
	s := &Session{
		store:    store,
		ids:      card.DefaultIDs,
		blockIDs: card.NewBlockID,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts editing the stored card id and selects it in the store.
func (s *Session) Open(id string) error {
	for _, c := range s.store.State().Cards {
		if c.ID == id {
			s.reset(c.Clone(), false)
			s.store.SelectCard(id)
			return nil
		}
	}
	return card.NewNotFoundError("id", fmt.Sprintf("card %q not found", id))
}

// NewDraft starts an unsaved card with one empty text block and clears
// the store selection.
func (s *Session) NewDraft() card.Card {
	now := s.now().UTC()
	text, _ := NewBlock(card.BlockText, s.blockIDs())
	c := card.Card{
		ID:        s.ids.NewID(),
		Title:     UntitledTitle,
		Blocks:    card.Blocks{text},
		Tags:      []card.Tag{},
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
	s.reset(c, true)
	s.store.SelectCard("")
	return c.Clone()
}

// Draft returns a copy of the draft and whether one is open.
func (s *Session) Draft() (card.Card, bool) {
	if s.draft == nil {
		return card.Card{}, false
	}
	return s.draft.Clone(), true
}

// IsNew reports whether the draft has never been saved.
func (s *Session) IsNew() bool { return s.draft != nil && s.isNew }

// Dirty reports whether the draft differs from what was opened or last
// saved. Timestamps are ignored. An unsaved draft is always dirty.
func (s *Session) Dirty() bool {
	if s.draft == nil {
		return false
	}
	if s.isNew || s.saved == nil {
		return true
	}
	return diffKey(*s.draft) != diffKey(*s.saved)
}

func (s *Session) CanUndo() bool { return len(s.history) > 0 }
func (s *Session) CanRedo() bool { return len(s.future) > 0 }

// Undo restores the previous draft. It reports whether anything changed.
func (s *Session) Undo() bool {
	if s.draft == nil || len(s.history) == 0 {
		return false
	}
	prev := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.future = append([]card.Card{s.draft.Clone()}, s.future...)
	s.draft = &prev
	return true
}

// Redo re-applies the most recently undone edit.
func (s *Session) Redo() bool {
	if s.draft == nil || len(s.future) == 0 {
		return false
	}
	next := s.future[0]
	s.future = s.future[1:]
	s.history = append(s.history, s.draft.Clone())
	s.draft = &next
	return true
}

// Discard drops the draft and its history.
func (s *Session) Discard() {
	s.draft, s.saved = nil, nil
	s.isNew = false
	s.history, s.future = nil, nil
}

// Problems validates the current draft.
func (s *Session) Problems() []string {
	if s.draft == nil {
		return nil
	}
	return ValidateDraft(*s.draft)
}

// Save validates the draft and persists it, creating the card when it is
// new or no longer stored and updating it otherwise. Validation failures
// return a DraftError and leave the store untouched.
func (s *Session) Save(ctx context.Context) (card.Card, error) {
	if s.draft == nil {
		return card.Card{}, fmt.Errorf("save: no open draft")
	}
	if problems := ValidateDraft(*s.draft); len(problems) > 0 {
		return card.Card{}, DraftError{Problems: problems}
	}

	var (
		saved card.Card
		err   error
	)
	if s.isNew || !s.stored(s.draft.ID) {
		saved, err = s.store.CreateCard(ctx, s.draft.Draft())
	} else {
		saved, err = s.store.UpdateCard(ctx, s.draft.Clone())
	}
	if err != nil {
		return card.Card{}, fmt.Errorf("save: %w", err)
	}

	s.log.Debug().Str("card_id", saved.ID).Bool("created", s.isNew).Msg("draft saved")
	s.reset(saved, false)
	s.store.SelectCard(saved.ID)
	return saved.Clone(), nil
}

// Delete removes the draft's card from the store. An unsaved draft is
// simply discarded.
func (s *Session) Delete(ctx context.Context) error {
	if s.draft == nil {
		return nil
	}
	if s.isNew {
		s.Discard()
		return nil
	}
	if err := s.store.DeleteCard(ctx, s.draft.ID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	s.Discard()
	return nil
}

// apply records the current draft in history and edits a copy of it.
// Pending redo steps are dropped.
func (s *Session) apply(fn func(c *card.Card)) bool {
	if s.draft == nil {
		return false
	}
	next := s.draft.Clone()
	fn(&next)
	s.history = append(s.history, s.draft.Clone())
	s.future = nil
	s.draft = &next
	return true
}

func (s *Session) reset(c card.Card, isNew bool) {
	draft := c.Clone()
	s.draft = &draft
	s.isNew = isNew
	if isNew {
		s.saved = nil
	} else {
		saved := c.Clone()
		s.saved = &saved
	}
	s.history, s.future = nil, nil
}

func (s *Session) stored(id string) bool {
	return slices.ContainsFunc(s.store.State().Cards, func(c card.Card) bool { return c.ID == id })
}

func (s *Session) blockIndex(id string) int {
	if s.draft == nil {
		return -1
	}
	return slices.IndexFunc(s.draft.Blocks, func(b card.Block) bool { return b.Base().ID == id })
}

// diffKey is the JSON form of c without its timestamps.
func diffKey(c card.Card) string {
	c.CreatedAt, c.UpdatedAt = time.Time{}, time.Time{}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}
