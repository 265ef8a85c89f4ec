package format

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"pkt.systems/nextvm/internal/ansi"
	"pkt.systems/nextvm/schema"
)

var (
	spanColorPattern = regexp.MustCompile(`^(rgb\(\d{1,3},\s*\d{1,3},\s*\d{1,3}\)|#[0-9a-fA-F]{3,6}|[a-zA-Z]+)$`)
	classPattern     = regexp.MustCompile(`^[a-z ]+$`)
)

// imageStyles are the style properties a showimage entry may carry into HTML.
var imageStyles = []string{
	"width", "height", "max-width", "max-height",
	"border", "border-radius", "opacity", "margin", "padding",
}

// HTMLRenderer renders output entries as sanitised HTML fragments.
type HTMLRenderer struct {
	policy *bluemonday.Policy
}

// NewHTMLRenderer returns a renderer with a policy that only keeps the
// markup produced for output entries.
func NewHTMLRenderer() *HTMLRenderer {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "span", "img")
	p.AllowAttrs("class").Matching(classPattern).OnElements("div")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)
	p.AllowStyles("color", "background-color").Matching(spanColorPattern).OnElements("span")
	p.AllowStyles(imageStyles...).OnElements("img")
	return &HTMLRenderer{policy: p}
}

// FormatEntry renders one entry as a div element.
func (r *HTMLRenderer) FormatEntry(entry schema.OutputEntry) string {
	return r.policy.Sanitize(rawEntryHTML(entry))
}

// FormatLog renders entries in order, one div per entry.
func (r *HTMLRenderer) FormatLog(entries []schema.OutputEntry) string {
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(rawEntryHTML(entry))
		b.WriteByte('\n')
	}
	return r.policy.Sanitize(b.String())
}

func rawEntryHTML(entry schema.OutputEntry) string {
	var b strings.Builder
	b.WriteString(`<div class="`)
	b.WriteString(entryClass(entry))
	b.WriteString(`">`)
	switch entry.Kind {
	case schema.EntryRendered:
		b.WriteString(ansi.SpansHTML(entry.Spans))
	case schema.EntryMedia:
		b.WriteString(`<img src="`)
		b.WriteString(html.EscapeString(entry.URL))
		b.WriteString(`" alt="image"`)
		if len(entry.Style) > 0 {
			b.WriteString(` style="`)
			b.WriteString(html.EscapeString(StyleString(entry.Style)))
			b.WriteString(`"`)
		}
		b.WriteString(`>`)
	default:
		b.WriteString(html.EscapeString(entry.Content))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func entryClass(entry schema.OutputEntry) string {
	classes := []string{"entry"}
	switch {
	case entry.Banner:
		classes = append(classes, "banner")
	case entry.Echo:
		classes = append(classes, "echo")
	case entry.Error:
		classes = append(classes, "error")
	}
	return strings.Join(classes, " ")
}

// StyleString serialises a style map as "a: b; c: d" with sorted keys.
func StyleString(style map[string]string) string {
	keys := make([]string, 0, len(style))
	for key := range style {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+style[key])
	}
	return strings.Join(parts, "; ")
}
