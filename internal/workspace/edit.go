package workspace

import (
	"fmt"
	"slices"

	"github.com/nongjianweihao/share-car/internal/card"
)

// Every edit below is one undo step. Edits return false, without
// recording history, when there is no draft or the target block is missing.

// AddBlock appends a default block of type t and returns it.
func (s *Session) AddBlock(t card.BlockType) (card.Block, error) {
	if s.draft == nil {
		return nil, fmt.Errorf("add block: no open draft")
	}
	b, err := NewBlock(t, s.blockIDs())
	if err != nil {
		return nil, err
	}
	s.apply(func(c *card.Card) { c.Blocks = append(c.Blocks, b) })
	return card.CloneBlock(b), nil
}

// UpdateBlock replaces the block with id by b. The block keeps its id.
func (s *Session) UpdateBlock(id string, b card.Block) bool {
	idx := s.blockIndex(id)
	if idx < 0 || b == nil {
		return false
	}
	base := b.Base()
	base.ID = id
	return s.apply(func(c *card.Card) { c.Blocks[idx] = withBase(b, base) })
}

// SetBlockLayout changes how wide the block with id renders.
func (s *Session) SetBlockLayout(id string, layout card.BlockLayout) bool {
	idx := s.blockIndex(id)
	if idx < 0 {
		return false
	}
	return s.apply(func(c *card.Card) {
		base := c.Blocks[idx].Base()
		base.Layout = layout
		c.Blocks[idx] = withBase(c.Blocks[idx], base)
	})
}

// SetBlockAccent sets the accent color of the block with id. An empty
// color clears it.
func (s *Session) SetBlockAccent(id, color string) bool {
	idx := s.blockIndex(id)
	if idx < 0 {
		return false
	}
	return s.apply(func(c *card.Card) {
		base := c.Blocks[idx].Base()
		base.AccentColor = color
		c.Blocks[idx] = withBase(c.Blocks[idx], base)
	})
}

// RemoveBlock deletes the block with id.
func (s *Session) RemoveBlock(id string) bool {
	idx := s.blockIndex(id)
	if idx < 0 {
		return false
	}
	return s.apply(func(c *card.Card) { c.Blocks = slices.Delete(c.Blocks, idx, idx+1) })
}

// DuplicateBlock inserts a copy of the block with id right after it and
// returns the copy's new id.
func (s *Session) DuplicateBlock(id string) (string, bool) {
	idx := s.blockIndex(id)
	if idx < 0 {
		return "", false
	}
	src := s.draft.Blocks[idx]
	base := src.Base()
	base.ID = s.blockIDs()
	dup := withBase(src, base)
	s.apply(func(c *card.Card) { c.Blocks = slices.Insert(c.Blocks, idx+1, dup) })
	return base.ID, true
}

// MoveBlock moves the block with id one position up (delta -1) or down
// (delta 1). Moves past either end are ignored.
func (s *Session) MoveBlock(id string, delta int) bool {
	idx := s.blockIndex(id)
	if idx < 0 || (delta != -1 && delta != 1) {
		return false
	}
	to := idx + delta
	if to < 0 || to >= len(s.draft.Blocks) {
		return false
	}
	return s.apply(func(c *card.Card) { c.Blocks[idx], c.Blocks[to] = c.Blocks[to], c.Blocks[idx] })
}

func (s *Session) SetTitle(title string) bool {
	return s.apply(func(c *card.Card) { c.Title = title })
}

func (s *Session) SetSummary(summary string) bool {
	return s.apply(func(c *card.Card) { c.Summary = summary })
}

func (s *Session) SetCategory(category string) bool {
	return s.apply(func(c *card.Card) { c.Category = category })
}

func (s *Session) SetPinned(pinned bool) bool {
	return s.apply(func(c *card.Card) { c.Pinned = pinned })
}

func (s *Session) SetArchived(archived bool) bool {
	return s.apply(func(c *card.Card) { c.Archived = archived })
}

// SetTags replaces the draft's tags with the parsed form of raw.
func (s *Session) SetTags(raw string) bool {
	tags := ParseTags(raw)
	return s.apply(func(c *card.Card) { c.Tags = tags })
}

// TagInput is the draft's tags in editable string form.
func (s *Session) TagInput() string {
	if s.draft == nil {
		return ""
	}
	return FormatTags(s.draft.Tags)
}

// SetLayout rewrites the card layout. fn receives a copy of the current
// layout, nil when unset, and may return nil to clear it.
func (s *Session) SetLayout(fn func(l *card.LayoutStyle) *card.LayoutStyle) bool {
	return s.apply(func(c *card.Card) {
		var cur *card.LayoutStyle
		if c.Layout != nil {
			l := *c.Layout
			cur = &l
		}
		c.Layout = fn(cur)
	})
}
