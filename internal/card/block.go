package card

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// BlockType is the wire discriminator of a content block.
type BlockType string

const (
	BlockText      BlockType = "text"
	BlockList      BlockType = "list"
	BlockQuote     BlockType = "quote"
	BlockMedia     BlockType = "media"
	BlockMetric    BlockType = "metric"
	BlockComponent BlockType = "component"
)

// BlockLayout controls how wide a block renders inside a card.
type BlockLayout string

const (
	BlockLayoutFull BlockLayout = "full"
	BlockLayoutHalf BlockLayout = "half"
	BlockLayoutAuto BlockLayout = "auto"
)

// Block is one unit of card content. The set of implementations is closed:
// TextBlock, ListBlock, QuoteBlock, MediaBlock, MetricBlock and ComponentBlock.
type Block interface {
	Kind() BlockType
	Base() BlockBase
	validate() error
	clone() Block
}

// BlockBase holds the fields shared by every block variant.
type BlockBase struct {
	ID          string      `json:"id"`
	Layout      BlockLayout `json:"layout,omitempty"`
	AccentColor string      `json:"accentColor,omitempty"`
}

func (b BlockBase) Base() BlockBase { return b }

func (b BlockBase) validateBase() error {
	if strings.TrimSpace(b.ID) == "" {
		return NewValidationError("block.id", "block id is required")
	}
	return nil
}

type TextEmphasis string

const (
	EmphasisDefault   TextEmphasis = "default"
	EmphasisMuted     TextEmphasis = "muted"
	EmphasisHighlight TextEmphasis = "highlight"
)

type TextBlock struct {
	BlockBase
	Text     string       `json:"text"`
	Emphasis TextEmphasis `json:"emphasis,omitempty"`
}

func (TextBlock) Kind() BlockType { return BlockText }

func (b TextBlock) validate() error {
	if strings.TrimSpace(b.Text) == "" {
		return NewValidationError("block.text", "text block requires text")
	}
	return nil
}

func (b TextBlock) clone() Block { return b }

type ListBlock struct {
	BlockBase
	Items   []string `json:"items"`
	Ordered bool     `json:"ordered,omitempty"`
}

func (ListBlock) Kind() BlockType { return BlockList }

func (b ListBlock) validate() error {
	if b.Items == nil {
		return NewValidationError("block.items", "list block requires items")
	}
	return nil
}

func (b ListBlock) clone() Block {
	if b.Items != nil {
		b.Items = append([]string{}, b.Items...)
	}
	return b
}

type QuoteBlock struct {
	BlockBase
	Quote       string `json:"quote"`
	Attribution string `json:"attribution,omitempty"`
}

func (QuoteBlock) Kind() BlockType { return BlockQuote }

func (b QuoteBlock) validate() error {
	if strings.TrimSpace(b.Quote) == "" {
		return NewValidationError("block.quote", "quote block requires quote")
	}
	return nil
}

func (b QuoteBlock) clone() Block { return b }

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

type MediaBlock struct {
	BlockBase
	URL       string    `json:"url"`
	Caption   string    `json:"caption,omitempty"`
	MediaType MediaType `json:"mediaType,omitempty"`
}

func (MediaBlock) Kind() BlockType { return BlockMedia }

func (b MediaBlock) validate() error {
	if strings.TrimSpace(b.URL) == "" {
		return NewValidationError("block.url", "media block requires url")
	}
	return nil
}

func (b MediaBlock) clone() Block { return b }

type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

type MetricBlock struct {
	BlockBase
	Label       string   `json:"label"`
	Value       float64  `json:"value"`
	Target      *float64 `json:"target,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Trend       Trend    `json:"trend,omitempty"`
	Description string   `json:"description,omitempty"`
}

func (MetricBlock) Kind() BlockType { return BlockMetric }

func (b MetricBlock) validate() error {
	if strings.TrimSpace(b.Label) == "" {
		return NewValidationError("block.label", "metric block requires label")
	}
	if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) {
		return NewValidationError("block.value", "metric value must be finite")
	}
	return nil
}

func (b MetricBlock) clone() Block {
	if b.Target != nil {
		t := *b.Target
		b.Target = &t
	}
	return b
}

type ComponentBlock struct {
	BlockBase
	ComponentID string         `json:"componentId"`
	Props       map[string]any `json:"props,omitempty"`
}

func (ComponentBlock) Kind() BlockType { return BlockComponent }

func (b ComponentBlock) validate() error {
	if strings.TrimSpace(b.ComponentID) == "" {
		return NewValidationError("block.componentId", "component block requires componentId")
	}
	return nil
}

func (b ComponentBlock) clone() Block {
	b.Props = cloneMap(b.Props)
	return b
}

// ValidateBlock reports whether b carries an id and satisfies its variant
// contract.
func ValidateBlock(b Block) error {
	if b == nil {
		return NewValidationError("block", "block is nil")
	}
	if err := b.Base().validateBase(); err != nil {
		return err
	}
	return b.validate()
}

// withBlockID returns a copy of b carrying id.
func withBlockID(b Block, id string) Block {
	switch v := b.clone().(type) {
	case TextBlock:
		v.ID = id
		return v
	case ListBlock:
		v.ID = id
		return v
	case QuoteBlock:
		v.ID = id
		return v
	case MediaBlock:
		v.ID = id
		return v
	case MetricBlock:
		v.ID = id
		return v
	case ComponentBlock:
		v.ID = id
		return v
	default:
		return b
	}
}

// CloneBlock returns a deep copy of b.
func CloneBlock(b Block) Block {
	if b == nil {
		return nil
	}
	return b.clone()
}

// MarshalBlock encodes b with its "type" discriminator.
func MarshalBlock(b Block) ([]byte, error) {
	switch v := b.(type) {
	case TextBlock:
		return json.Marshal(struct {
			Type BlockType `json:"type"`
			TextBlock
		}{BlockText, v})
	case ListBlock:
		return json.Marshal(struct {
			Type BlockType `json:"type"`
			ListBlock
		}{BlockList, v})
	case QuoteBlock:
		return json.Marshal(struct {
			Type BlockType `json:"type"`
			QuoteBlock
		}{BlockQuote, v})
	case MediaBlock:
		return json.Marshal(struct {
			Type BlockType `json:"type"`
			MediaBlock
		}{BlockMedia, v})
	case MetricBlock:
		return json.Marshal(struct {
			Type BlockType `json:"type"`
			MetricBlock
		}{BlockMetric, v})
	case ComponentBlock:
		return json.Marshal(struct {
			Type BlockType `json:"type"`
			ComponentBlock
		}{BlockComponent, v})
	default:
		return nil, fmt.Errorf("marshal block: unsupported block %T", b)
	}
}

// UnmarshalBlock decodes one block and checks its variant contract. A
// missing id is left blank for card.New to fill in.
func UnmarshalBlock(data []byte) (Block, error) {
	var head struct {
		Type BlockType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}

	var b Block
	switch head.Type {
	case BlockText:
		var v TextBlock
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal text block: %w", err)
		}
		b = v
	case BlockList:
		var v ListBlock
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal list block: %w", err)
		}
		b = v
	case BlockQuote:
		var v QuoteBlock
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal quote block: %w", err)
		}
		b = v
	case BlockMedia:
		var v MediaBlock
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal media block: %w", err)
		}
		b = v
	case BlockMetric:
		var v struct {
			MetricBlock
			Value *float64 `json:"value"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal metric block: %w", err)
		}
		if v.Value == nil {
			return nil, NewValidationError("block.value", "metric block requires a numeric value")
		}
		v.MetricBlock.Value = *v.Value
		b = v.MetricBlock
	case BlockComponent:
		var v ComponentBlock
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal component block: %w", err)
		}
		b = v
	default:
		return nil, NewValidationError("block.type", fmt.Sprintf("unknown block type %q", head.Type))
	}

	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Blocks is an ordered block list with a discriminated JSON encoding.
// Decoding drops entries that fail their contract instead of failing the card.
type Blocks []Block

func (bs Blocks) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(bs))
	for _, b := range bs {
		data, err := MarshalBlock(b)
		if err != nil {
			return nil, err
		}
		raw = append(raw, data)
	}
	return json.Marshal(raw)
}

func (bs *Blocks) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal blocks: %w", err)
	}
	out := make(Blocks, 0, len(raw))
	for _, item := range raw {
		b, err := UnmarshalBlock(item)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	*bs = out
	return nil
}

// SearchableText returns the strings of b that participate in free-text search.
func SearchableText(b Block) []string {
	switch v := b.(type) {
	case TextBlock:
		return []string{v.Text}
	case ListBlock:
		return append([]string{}, v.Items...)
	case QuoteBlock:
		return []string{v.Quote, v.Attribution}
	case MetricBlock:
		value := FormatNumber(v.Value)
		if v.Unit != "" {
			value += v.Unit
		}
		out := []string{v.Label, v.Description, value}
		if v.Target != nil {
			out = append(out, "target:"+FormatNumber(*v.Target))
		}
		if v.Trend != "" {
			out = append(out, string(v.Trend))
		}
		return out
	default:
		return nil
	}
}
