package card

import (
	"encoding/json"
	"fmt"
)

var requiredCardKeys = []string{"id", "title", "blocks", "tags", "createdAt", "updatedAt"}

// DecodeCollection parses a persisted card array. Entries that are not
// valid cards are skipped; later duplicates of an id are dropped.
// An empty payload decodes to an empty collection.
func DecodeCollection(data []byte) ([]Card, error) {
	if len(data) == 0 {
		return []Card{}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}

	cards := make([]Card, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		c, err := decodeCard(item)
		if err != nil {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		cards = append(cards, c)
	}
	return cards, nil
}

func decodeCard(data []byte) (Card, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return Card{}, err
	}
	for _, k := range requiredCardKeys {
		if _, ok := keys[k]; !ok {
			return Card{}, NewValidationError(k, "missing field")
		}
	}
	var c Card
	if err := json.Unmarshal(data, &c); err != nil {
		return Card{}, err
	}
	return Normalize(c)
}

// EncodeCollection serializes cards as one JSON array.
func EncodeCollection(cards []Card) ([]byte, error) {
	if cards == nil {
		cards = []Card{}
	}
	data, err := json.Marshal(cards)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}
