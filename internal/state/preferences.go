package state

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nongjianweihao/share-car/internal/card"
)

type SortOrder string

const (
	SortUpdatedDesc SortOrder = "updated-desc"
	SortUpdatedAsc  SortOrder = "updated-asc"
	SortTitleAsc    SortOrder = "title-asc"
	SortTitleDesc   SortOrder = "title-desc"
)

type LayoutMode string

const (
	LayoutSingle  LayoutMode = "single"
	LayoutBento   LayoutMode = "bento"
	LayoutCompact LayoutMode = "compact"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeOcean Theme = "ocean"
)

// ViewPreferences are presentation choices that never trigger a reload.
type ViewPreferences struct {
	SortOrder SortOrder  `json:"sortOrder"`
	Layout    LayoutMode `json:"layout"`
	Theme     Theme      `json:"theme"`
}

// DefaultPreferences returns updated-desc, bento, light.
func DefaultPreferences() ViewPreferences {
	return ViewPreferences{SortOrder: SortUpdatedDesc, Layout: LayoutBento, Theme: ThemeLight}
}

func (o SortOrder) Valid() bool {
	switch o {
	case SortUpdatedDesc, SortUpdatedAsc, SortTitleAsc, SortTitleDesc:
		return true
	}
	return false
}

func (m LayoutMode) Valid() bool {
	switch m {
	case LayoutSingle, LayoutBento, LayoutCompact:
		return true
	}
	return false
}

func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeOcean:
		return true
	}
	return false
}

// SetSortOrder changes how SortedView orders the filtered cards.
func (s *Store) SetSortOrder(o SortOrder) error {
	if !o.Valid() {
		return card.NewValidationError("sortOrder", fmt.Sprintf("unsupported sort order %q", o))
	}
	s.update(func(st *State) bool {
		st.ViewPreferences.SortOrder = o
		return true
	})
	return nil
}

// SetLayoutMode changes the gallery layout.
func (s *Store) SetLayoutMode(m LayoutMode) error {
	if !m.Valid() {
		return card.NewValidationError("layout", fmt.Sprintf("unsupported layout %q", m))
	}
	s.update(func(st *State) bool {
		st.ViewPreferences.Layout = m
		return true
	})
	return nil
}

// SetViewTheme changes the gallery theme.
func (s *Store) SetViewTheme(t Theme) error {
	if !t.Valid() {
		return card.NewValidationError("theme", fmt.Sprintf("unsupported theme %q", t))
	}
	s.update(func(st *State) bool {
		st.ViewPreferences.Theme = t
		return true
	})
	return nil
}

// SortedView returns the filtered cards ordered by the current sort order.
func (s *Store) SortedView() []card.Card {
	st := s.State()
	SortForView(st.FilteredCards, st.ViewPreferences.SortOrder)
	return st.FilteredCards
}

// SortForView orders cards in place the way the gallery shows them.
// Titles compare with the Simplified Chinese collator.
func SortForView(cards []card.Card, order SortOrder) {
	switch order {
	case SortTitleAsc, SortTitleDesc:
		col := collate.New(language.SimplifiedChinese)
		sort.SliceStable(cards, func(i, j int) bool {
			c := col.CompareString(cards[i].Title, cards[j].Title)
			if order == SortTitleDesc {
				return c > 0
			}
			return c < 0
		})
	case SortUpdatedAsc:
		sort.SliceStable(cards, func(i, j int) bool {
			return cards[i].UpdatedAt.Before(cards[j].UpdatedAt)
		})
	default:
		sort.SliceStable(cards, func(i, j int) bool {
			return cards[i].UpdatedAt.After(cards[j].UpdatedAt)
		})
	}
}
