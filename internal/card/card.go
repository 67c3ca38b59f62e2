package card

import (
	"strconv"
	"strings"
	"time"
)

type TagKind string

const (
	TagCategory TagKind = "category"
	TagKeyword  TagKind = "keyword"
	TagStatus   TagKind = "status"
)

// Tag labels a card. Tags are unique by ID within one card.
type Tag struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        TagKind    `json:"kind,omitempty"`
	Color       string     `json:"color,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func validateTag(t Tag) error {
	if strings.TrimSpace(t.ID) == "" {
		return NewValidationError("tag.id", "tag id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return NewValidationError("tag.name", "tag name is required")
	}
	return nil
}

// LayoutStyle is presentation data carried through untouched.
type LayoutStyle struct {
	Variant       string `json:"variant,omitempty" yaml:"variant,omitempty"`
	AccentColor   string `json:"accentColor,omitempty" yaml:"accentColor,omitempty"`
	CoverImageURL string `json:"coverImageUrl,omitempty" yaml:"coverImageUrl,omitempty"`
	Background    string `json:"background,omitempty" yaml:"background,omitempty"`
}

// Card is a titled, tagged, ordered set of content blocks.
type Card struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	Category  string         `json:"category,omitempty"`
	Blocks    Blocks         `json:"blocks"`
	Tags      []Tag          `json:"tags"`
	Layout    *LayoutStyle   `json:"layout,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Pinned    bool           `json:"pinned"`
	Archived  bool           `json:"archived"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Draft is the caller-supplied input to New. Zero values mean "use the default".
type Draft struct {
	ID        string         `json:"id,omitempty"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary,omitempty"`
	Category  string         `json:"category,omitempty"`
	Blocks    Blocks         `json:"blocks,omitempty"`
	Tags      []Tag          `json:"tags,omitempty"`
	Layout    *LayoutStyle   `json:"layout,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
	UpdatedAt time.Time      `json:"updatedAt,omitzero"`
	Pinned    bool           `json:"pinned,omitempty"`
	Archived  bool           `json:"archived,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Draft returns c as a draft, keeping every field.
func (c Card) Draft() Draft {
	c = c.Clone()
	return Draft{
		ID:        c.ID,
		Title:     c.Title,
		Summary:   c.Summary,
		Category:  c.Category,
		Blocks:    c.Blocks,
		Tags:      c.Tags,
		Layout:    c.Layout,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Pinned:    c.Pinned,
		Archived:  c.Archived,
		Metadata:  c.Metadata,
	}
}

// maxBlockIDAttempts bounds regeneration when a fresh block id collides.
const maxBlockIDAttempts = 8

type buildOptions struct {
	blockIDs func() string
}

// Option adjusts how New and Normalize build a card.
type Option func(*buildOptions)

// WithBlockIDs sets the source of ids for blocks that arrive without one
// (default NewBlockID).
func WithBlockIDs(fn func() string) Option {
	return func(o *buildOptions) {
		if fn != nil {
			o.blockIDs = fn
		}
	}
}

// New materializes a card from d. Missing card and block ids are generated,
// missing timestamps come from now. Invalid or duplicate blocks and tags are
// dropped.
func New(d Draft, now time.Time, ids IDGenerator, opts ...Option) (Card, error) {
	bo := buildOptions{blockIDs: NewBlockID}
	for _, opt := range opts {
		opt(&bo)
	}

	if strings.TrimSpace(d.Title) == "" {
		return Card{}, NewValidationError("title", "title is required")
	}

	id := strings.TrimSpace(d.ID)
	if id == "" {
		if ids == nil {
			ids = DefaultIDs
		}
		id = ids.NewID()
	}

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := d.UpdatedAt
	if updatedAt.IsZero() || updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}

	metadata := cloneMap(d.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	var layout *LayoutStyle
	if d.Layout != nil {
		l := *d.Layout
		layout = &l
	}

	return Card{
		ID:        id,
		Title:     d.Title,
		Summary:   d.Summary,
		Category:  d.Category,
		Blocks:    filterBlocks(d.Blocks, bo.blockIDs),
		Tags:      filterTags(d.Tags),
		Layout:    layout,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Pinned:    d.Pinned,
		Archived:  d.Archived,
		Metadata:  metadata,
	}, nil
}

// Normalize re-applies the construction rules to an existing card.
func Normalize(c Card, opts ...Option) (Card, error) {
	if strings.TrimSpace(c.ID) == "" {
		return Card{}, NewValidationError("id", "card id is required")
	}
	return New(c.Draft(), c.CreatedAt, nil, opts...)
}

// filterBlocks keeps valid blocks in order, dropping later duplicates of an
// id. Blocks without an id get a fresh one that no other block uses.
func filterBlocks(in Blocks, blockIDs func() string) Blocks {
	taken := make(map[string]struct{}, len(in))
	for _, b := range in {
		if b != nil {
			taken[b.Base().ID] = struct{}{}
		}
	}

	out := make(Blocks, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, b := range in {
		if b == nil {
			continue
		}
		if strings.TrimSpace(b.Base().ID) == "" {
			id, ok := freshBlockID(taken, blockIDs)
			if !ok {
				continue
			}
			b = withBlockID(b, id)
		}
		if ValidateBlock(b) != nil {
			continue
		}
		id := b.Base().ID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, b.clone())
	}
	return out
}

func freshBlockID(taken map[string]struct{}, blockIDs func() string) (string, bool) {
	for i := 0; i < maxBlockIDAttempts; i++ {
		id := blockIDs()
		if _, dup := taken[id]; dup || strings.TrimSpace(id) == "" {
			continue
		}
		taken[id] = struct{}{}
		return id, true
	}
	return "", false
}

func filterTags(in []Tag) []Tag {
	out := make([]Tag, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		if validateTag(t) != nil {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, cloneTag(t))
	}
	return out
}

// Clone returns a deep copy of c.
func (c Card) Clone() Card {
	out := c
	if c.Blocks != nil {
		out.Blocks = make(Blocks, len(c.Blocks))
		for i, b := range c.Blocks {
			out.Blocks[i] = CloneBlock(b)
		}
	}
	if c.Tags != nil {
		out.Tags = make([]Tag, len(c.Tags))
		for i, t := range c.Tags {
			out.Tags[i] = cloneTag(t)
		}
	}
	if c.Layout != nil {
		l := *c.Layout
		out.Layout = &l
	}
	out.Metadata = cloneMap(c.Metadata)
	return out
}

// CloneAll deep-copies a slice of cards.
func CloneAll(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}

// HasTag reports whether c carries a tag with the given id.
func (c Card) HasTag(id string) bool {
	for _, t := range c.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

func cloneTag(t Tag) Tag {
	if t.CreatedAt != nil {
		v := *t.CreatedAt
		t.CreatedAt = &v
	}
	if t.UpdatedAt != nil {
		v := *t.UpdatedAt
		t.UpdatedAt = &v
	}
	return t
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string{}, x...)
	default:
		return v
	}
}

// FormatNumber renders a metric number the shortest way that round-trips.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
