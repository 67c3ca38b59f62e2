package export

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/nongjianweihao/share-car/internal/card"
)

// Footer is the attribution line printed under every shared card.
const Footer = "来自：爱德华思跳绳 · 知识卡片"

//go:embed share.html.tmpl
var shareSource string

var shareTemplate = template.Must(template.New("share").Parse(shareSource))

type shareView struct {
	Title    string
	Updated  string
	Tags     []string
	CoverURL string
	Category string
	Footer   string
	Markdown string
}

// WriteShareHTML writes a standalone HTML page for c. The page embeds the
// card's Markdown and renders it in the browser. Times are shown in loc,
// UTC when nil.
func WriteShareHTML(w io.Writer, c card.Card, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	view := shareView{
		Title:    c.Title,
		Updated:  c.UpdatedAt.In(loc).Format("2006-01-02 15:04"),
		Category: c.Category,
		Footer:   Footer,
		Markdown: Markdown(c),
	}
	for _, t := range c.Tags {
		view.Tags = append(view.Tags, t.Name)
	}
	if c.Layout != nil {
		view.CoverURL = c.Layout.CoverImageURL
	}
	if err := shareTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("render share page for %s: %w", c.ID, err)
	}
	return nil
}

// ShareHTML is WriteShareHTML into a byte slice.
func ShareHTML(c card.Card, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteShareHTML(&buf, c, loc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ShareFileName is the download name of c's share page: its slug metadata
// when present, otherwise its id.
func ShareFileName(c card.Card) string {
	if slug, ok := c.Metadata["slug"].(string); ok && strings.TrimSpace(slug) != "" {
		return strings.TrimSpace(slug) + ".html"
	}
	return c.ID + ".html"
}
