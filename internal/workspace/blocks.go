package workspace

import (
	"fmt"

	"github.com/nongjianweihao/share-car/internal/card"
)

// NewBlock returns a block of type t pre-filled with editor defaults.
// Media and component blocks are not authored in the editor.
func NewBlock(t card.BlockType, id string) (card.Block, error) {
	base := card.BlockBase{ID: id}
	switch t {
	case card.BlockText:
		return card.TextBlock{BlockBase: base, Text: "", Emphasis: card.EmphasisDefault}, nil
	case card.BlockList:
		return card.ListBlock{BlockBase: base, Items: []string{"新要点"}}, nil
	case card.BlockMetric:
		return card.MetricBlock{BlockBase: base, Label: "新指标", Value: 0, Trend: card.TrendNeutral}, nil
	case card.BlockQuote:
		return card.QuoteBlock{BlockBase: base, Quote: "引用内容"}, nil
	default:
		return nil, card.NewValidationError("block.type", fmt.Sprintf("cannot add %q blocks in the editor", t))
	}
}

// withBase returns a copy of b carrying base.
func withBase(b card.Block, base card.BlockBase) card.Block {
	switch v := card.CloneBlock(b).(type) {
	case card.TextBlock:
		v.BlockBase = base
		return v
	case card.ListBlock:
		v.BlockBase = base
		return v
	case card.QuoteBlock:
		v.BlockBase = base
		return v
	case card.MediaBlock:
		v.BlockBase = base
		return v
	case card.MetricBlock:
		v.BlockBase = base
		return v
	case card.ComponentBlock:
		v.BlockBase = base
		return v
	default:
		return b
	}
}
