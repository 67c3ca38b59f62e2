// Package seed holds the built-in card set written to an empty collection.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nongjianweihao/share-car/internal/card"
)

//go:embed cards.yaml
var builtin []byte

type keyword struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type entry struct {
	ID        string            `yaml:"id"`
	Title     string            `yaml:"title"`
	Summary   string            `yaml:"summary"`
	Category  string            `yaml:"category"`
	Keyword   keyword           `yaml:"keyword"`
	Component string            `yaml:"component"`
	Layout    *card.LayoutStyle `yaml:"layout"`
}

type file struct {
	Timestamp     time.Time `yaml:"timestamp"`
	CategoryColor string    `yaml:"categoryColor"`
	Cards         []entry   `yaml:"cards"`
}

// Cards returns a fresh copy of the built-in seed set.
func Cards() ([]card.Card, error) {
	return Parse(builtin)
}

// MustCards is Cards for callers that treat a broken embedded file as a bug.
func MustCards() []card.Card {
	cards, err := Cards()
	if err != nil {
		panic(err)
	}
	return cards
}

// Parse builds seed cards from the YAML layout used by cards.yaml. Each entry
// gets a category tag, a keyword tag and one component block.
func Parse(data []byte) ([]card.Card, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	ts := f.Timestamp.UTC()

	out := make([]card.Card, 0, len(f.Cards))
	for i, e := range f.Cards {
		draft := card.Draft{
			ID:        e.ID,
			Title:     e.Title,
			Summary:   e.Summary,
			Category:  e.Category,
			Layout:    e.Layout,
			Metadata:  map[string]any{"slug": e.ID},
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if e.Category != "" {
			draft.Tags = append(draft.Tags, card.Tag{
				ID:        "category:" + e.Category,
				Name:      e.Category,
				Kind:      card.TagCategory,
				Color:     f.CategoryColor,
				CreatedAt: &ts,
				UpdatedAt: &ts,
			})
		}
		if e.Keyword.ID != "" {
			draft.Tags = append(draft.Tags, card.Tag{
				ID:        "keyword:" + e.Keyword.ID,
				Name:      e.Keyword.Name,
				Kind:      card.TagKeyword,
				CreatedAt: &ts,
				UpdatedAt: &ts,
			})
		}
		if e.Component != "" {
			draft.Blocks = card.Blocks{card.ComponentBlock{
				BlockBase:   card.BlockBase{ID: e.ID + "-component"},
				ComponentID: e.Component,
			}}
		}

		c, err := card.New(draft, ts, nil)
		if err != nil {
			return nil, fmt.Errorf("seed: card %d (%s): %w", i, e.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}
