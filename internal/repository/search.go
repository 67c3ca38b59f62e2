package repository

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nongjianweihao/share-car/internal/card"
)

// SortField selects the card attribute SearchCards orders by.
type SortField string

const (
	SortByTitle     SortField = "title"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SearchOptions filter and order a card list. Zero values match everything,
// sorted by updatedAt descending.
type SearchOptions struct {
	Query           string        `json:"query,omitempty"`
	TagIDs          []string      `json:"tagIds,omitempty"`
	TagNames        []string      `json:"tagNames,omitempty"`
	SortBy          SortField     `json:"sortBy,omitempty"`
	Direction       SortDirection `json:"direction,omitempty"`
	IncludeArchived bool          `json:"includeArchived,omitempty"`
}

// SearchCards filters source, or the stored collection when source is nil.
func (r *Repository) SearchCards(ctx context.Context, opts SearchOptions, source []card.Card) ([]card.Card, error) {
	if source == nil {
		r.mu.Lock()
		cards, err := r.loadLocked(ctx)
		r.mu.Unlock()
		if err != nil {
			return nil, err
		}
		source = cards
	}
	return Search(source, opts), nil
}

// Search applies opts to cards and returns deep copies of the matches.
func Search(cards []card.Card, opts SearchOptions) []card.Card {
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	out := make([]card.Card, 0, len(cards))
	for _, c := range cards {
		if c.Archived && !opts.IncludeArchived {
			continue
		}
		if !MatchesQuery(c, query) || !matchesTags(c, opts.TagIDs, opts.TagNames) {
			continue
		}
		out = append(out, c.Clone())
	}
	SortCards(out, opts.SortBy, opts.Direction)
	return out
}

// MatchesQuery reports whether the lowercased query occurs in any
// searchable text of c. An empty query matches every card.
func MatchesQuery(c card.Card, query string) bool {
	if query == "" {
		return true
	}
	for _, text := range searchableText(c) {
		if strings.Contains(strings.ToLower(text), query) {
			return true
		}
	}
	return false
}

func searchableText(c card.Card) []string {
	out := []string{c.Title, c.Summary, c.Category}
	for _, t := range c.Tags {
		out = append(out, t.Name)
	}
	for _, b := range c.Blocks {
		out = append(out, card.SearchableText(b)...)
	}
	return out
}

func matchesTags(c card.Card, ids, names []string) bool {
	for _, id := range ids {
		if !c.HasTag(id) {
			return false
		}
	}
	for _, name := range names {
		want := strings.ToLower(name)
		found := false
		for _, t := range c.Tags {
			if strings.ToLower(t.Name) == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SortCards orders cards in place. Titles use a locale-aware collator.
func SortCards(cards []card.Card, by SortField, dir SortDirection) {
	if by == "" {
		by = SortByUpdatedAt
	}
	desc := dir != SortAsc

	var cmp func(a, b card.Card) int
	switch by {
	case SortByTitle:
		col := collate.New(language.Und)
		cmp = func(a, b card.Card) int { return col.CompareString(a.Title, b.Title) }
	case SortByCreatedAt:
		cmp = func(a, b card.Card) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		cmp = func(a, b card.Card) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	}

	sort.SliceStable(cards, func(i, j int) bool {
		if desc {
			return cmp(cards[j], cards[i]) < 0
		}
		return cmp(cards[i], cards[j]) < 0
	})
}
