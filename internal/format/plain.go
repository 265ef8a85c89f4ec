package format

import (
	"fmt"
	"strings"

	"pkt.systems/nextvm/schema"
)

// PlainRenderer formats output entries as plain text lines.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatEntry converts an OutputEntry into user-facing lines. Styling is
// dropped; media entries become a placeholder line.
func (p *PlainRenderer) FormatEntry(entry schema.OutputEntry) []string {
	switch entry.Kind {
	case schema.EntryRendered:
		var b strings.Builder
		for _, span := range entry.Spans {
			b.WriteString(span.Text)
		}
		return splitLines(b.String())
	case schema.EntryMedia:
		if len(entry.Style) == 0 {
			return []string{fmt.Sprintf("[image: %s]", entry.URL)}
		}
		return []string{fmt.Sprintf("[image: %s %s]", entry.URL, StyleString(entry.Style))}
	default:
		return splitLines(entry.Content)
	}
}

// FormatLog renders all entries, one line per slice element.
func (p *PlainRenderer) FormatLog(entries []schema.OutputEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, p.FormatEntry(entry)...)
	}
	return lines
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
