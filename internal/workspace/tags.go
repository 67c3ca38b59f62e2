package workspace

import (
	"strconv"
	"strings"

	"github.com/nongjianweihao/share-car/internal/card"
)

const maxTagIDLen = 36

// ParseTags turns a comma separated tag string into tags. Ids are slugs of
// the names; colliding slugs get a numeric suffix.
func ParseTags(raw string) []card.Tag {
	out := []card.Tag{}
	seen := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		base := tagSlug(name)
		if base == "" {
			base = name
		}
		id := base
		for n := 2; ; n++ {
			if _, dup := seen[id]; !dup {
				break
			}
			id = base + "_" + strconv.Itoa(n)
		}
		seen[id] = struct{}{}
		out = append(out, card.Tag{ID: id, Name: name})
	}
	return out
}

// FormatTags renders tags back into the editable string form.
func FormatTags(tags []card.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

// tagSlug lowercases name and collapses every run of characters outside
// a-z, 0-9 and the CJK unified block into a single dash.
func tagSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if isSlugRune(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := []rune(strings.Trim(b.String(), "-"))
	if len(slug) > maxTagIDLen {
		slug = slug[:maxTagIDLen]
	}
	return string(slug)
}

func isSlugRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || (r >= 0x4e00 && r <= 0x9fa5)
}
