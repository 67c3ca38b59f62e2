// Package export renders cards for sharing and moves whole collections in
// and out as JSON backups.
package export

import (
	"fmt"
	"strings"

	"github.com/nongjianweihao/share-car/internal/card"
)

var trendMarks = map[card.Trend]string{
	card.TrendUp:      "↑",
	card.TrendDown:    "↓",
	card.TrendNeutral: "→",
}

// Markdown renders c's summary and blocks as Markdown, one paragraph per
// block in card order.
func Markdown(c card.Card) string {
	var parts []string
	if s := strings.TrimSpace(c.Summary); s != "" {
		parts = append(parts, s)
	}
	for _, b := range c.Blocks {
		if md := blockMarkdown(b); md != "" {
			parts = append(parts, md)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func blockMarkdown(b card.Block) string {
	switch v := b.(type) {
	case card.TextBlock:
		text := strings.TrimSpace(v.Text)
		switch {
		case text == "":
			return ""
		case v.Emphasis == card.EmphasisHighlight:
			return "**" + text + "**"
		case v.Emphasis == card.EmphasisMuted:
			return "_" + text + "_"
		}
		return text
	case card.ListBlock:
		lines := make([]string, 0, len(v.Items))
		for i, item := range v.Items {
			marker := "-"
			if v.Ordered {
				marker = fmt.Sprintf("%d.", i+1)
			}
			lines = append(lines, marker+" "+item)
		}
		return strings.Join(lines, "\n")
	case card.QuoteBlock:
		lines := quoteLines(v.Quote)
		if a := strings.TrimSpace(v.Attribution); a != "" {
			lines = append(lines, ">", "> *"+a+"*")
		}
		return strings.Join(lines, "\n")
	case card.MediaBlock:
		label := v.Caption
		if label == "" {
			label = v.URL
		}
		if v.MediaType == card.MediaImage || v.MediaType == "" {
			return fmt.Sprintf("![%s](%s)", v.Caption, v.URL)
		}
		return fmt.Sprintf("[%s](%s)", label, v.URL)
	case card.MetricBlock:
		line := fmt.Sprintf("**%s**: %s%s", v.Label, card.FormatNumber(v.Value), v.Unit)
		if v.Target != nil {
			line += fmt.Sprintf(" / %s%s", card.FormatNumber(*v.Target), v.Unit)
		}
		if mark, ok := trendMarks[v.Trend]; ok {
			line += " " + mark
		}
		if d := strings.TrimSpace(v.Description); d != "" {
			line += "\n\n" + d
		}
		return line
	case card.ComponentBlock:
		return fmt.Sprintf("<!-- component: %s -->", v.ComponentID)
	}
	return ""
}

func quoteLines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		out = append(out, "> "+line)
	}
	return out
}
