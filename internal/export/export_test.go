package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nongjianweihao/share-car/internal/card"
)

var t0 = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func sample() card.Card {
	target := 30.0
	return card.Card{
		ID:       "card_1",
		Title:    "速度训练 <进阶>",
		Summary:  "敏感期的速度练习",
		Category: "运动",
		Blocks: card.Blocks{
			card.TextBlock{BlockBase: card.BlockBase{ID: "t"}, Text: "重点", Emphasis: card.EmphasisHighlight},
			card.ListBlock{BlockBase: card.BlockBase{ID: "l"}, Items: []string{"热身", "冲刺"}, Ordered: true},
			card.QuoteBlock{BlockBase: card.BlockBase{ID: "q"}, Quote: "快即是美", Attribution: "教练"},
			card.MediaBlock{BlockBase: card.BlockBase{ID: "m"}, URL: "https://x/y.png", Caption: "示意", MediaType: card.MediaImage},
			card.MetricBlock{BlockBase: card.BlockBase{ID: "n"}, Label: "跳绳", Value: 25.5, Target: &target, Unit: "次", Trend: card.TrendUp},
			card.ComponentBlock{BlockBase: card.BlockBase{ID: "c"}, ComponentID: "Sports/SpeedCard"},
		},
		Tags:      []card.Tag{{ID: "speed", Name: "速度"}},
		Layout:    &card.LayoutStyle{CoverImageURL: "https://x/cover.png"},
		CreatedAt: t0,
		UpdatedAt: t0,
		Metadata:  map[string]any{},
	}
}

func TestMarkdown(t *testing.T) {
	want := strings.Join([]string{
		"敏感期的速度练习",
		"**重点**",
		"1. 热身\n2. 冲刺",
		"> 快即是美\n>\n> *教练*",
		"![示意](https://x/y.png)",
		"**跳绳**: 25.5次 / 30次 ↑",
		"<!-- component: Sports/SpeedCard -->",
	}, "\n\n") + "\n"
	assert.Equal(t, want, Markdown(sample()))
	assert.Equal(t, "", Markdown(card.Card{Title: "empty"}))
}

func TestShareHTML(t *testing.T) {
	page, err := ShareHTML(sample(), time.FixedZone("CST", 8*3600))
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, "<title>速度训练 &lt;进阶&gt;</title>")
	assert.Contains(t, html, "2024-06-01 16:30")
	assert.Contains(t, html, `<span class="tag">#速度</span>`)
	assert.Contains(t, html, `src="https://x/cover.png"`)
	assert.Contains(t, html, "栏目：运动")
	assert.Contains(t, html, Footer)
	assert.Contains(t, html, "const md = \"")
	assert.NotContains(t, html, "<!-- component", "markdown must be escaped inside the script")
}

func TestShareFileName(t *testing.T) {
	c := sample()
	assert.Equal(t, "card_1.html", ShareFileName(c))
	c.Metadata["slug"] = "speed-card"
	assert.Equal(t, "speed-card.html", ShareFileName(c))
}

func TestBackupRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, []card.Card{sample()}, t0))
	assert.Contains(t, buf.String(), `"version": 1`)

	cards, err := ReadBackup(&buf)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "card_1", cards[0].ID)
	assert.Len(t, cards[0].Blocks, 6)
	assert.True(t, cards[0].UpdatedAt.Equal(t0))
}

func TestReadBackupAcceptsBareArray(t *testing.T) {
	data, err := card.EncodeCollection([]card.Card{sample()})
	require.NoError(t, err)
	cards, err := ReadBackup(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestReadBackupRejectsMalformed(t *testing.T) {
	for name, input := range map[string]string{
		"empty":          "  ",
		"not json":       "{oops",
		"future version": `{"version": 99, "cards": []}`,
		"no cards":       `{"version": 1}`,
		"scalar":         `"cards"`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadBackup(strings.NewReader(input))
			require.Error(t, err)
			assert.True(t, card.IsValidationError(err))
		})
	}
}
