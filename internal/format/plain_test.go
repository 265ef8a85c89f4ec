package format

import (
	"strings"
	"testing"

	"pkt.systems/nextvm/internal/ansi"
	"pkt.systems/nextvm/schema"
)

func TestFormatEntryRenderedDropsStyles(t *testing.T) {
	entry := schema.RenderedEntry(ansi.Parse("\x1b[31mred\x1b[0m\nplain\n"))
	lines := NewPlainRenderer().FormatEntry(entry)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d (%v)", len(lines), lines)
	}
	if lines[0] != "red" || lines[1] != "plain" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestFormatEntryMedia(t *testing.T) {
	entry := schema.MediaEntry("https://x.test/a.png", map[string]string{"width": "10px", "border": "none"})
	lines := NewPlainRenderer().FormatEntry(entry)
	if len(lines) != 1 || lines[0] != "[image: https://x.test/a.png border: none; width: 10px]" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestFormatLogKeepsOrder(t *testing.T) {
	entries := []schema.OutputEntry{
		schema.TextEntry("root@next:~# ls"),
		schema.TextEntry("a\nb"),
		schema.ErrorEntry(schema.ErrorKindCommand, "Error: boom"),
	}
	lines := NewPlainRenderer().FormatLog(entries)
	if strings.Join(lines, "|") != "root@next:~# ls|a|b|Error: boom" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestHTMLRendererEscapesText(t *testing.T) {
	out := NewHTMLRenderer().FormatEntry(schema.TextEntry("<script>alert(1)</script>"))
	if strings.Contains(out, "<script>") {
		t.Fatalf("expected script to be escaped, got %s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Fatalf("expected escaped text, got %s", out)
	}
}

func TestHTMLRendererKeepsSpanColors(t *testing.T) {
	entry := schema.RenderedEntry(ansi.Parse("\x1b[31mred\x1b[0m"))
	out := NewHTMLRenderer().FormatEntry(entry)
	if !strings.Contains(out, "<span") || !strings.Contains(out, "rgb(170,0,0)") {
		t.Fatalf("expected coloured span, got %s", out)
	}
	if !strings.Contains(out, ">red</span>") {
		t.Fatalf("expected span text, got %s", out)
	}
}

func TestHTMLRendererFiltersImageURLs(t *testing.T) {
	r := NewHTMLRenderer()
	good := r.FormatEntry(schema.MediaEntry("https://x.test/a.png", nil))
	if !strings.Contains(good, `src="https://x.test/a.png"`) {
		t.Fatalf("expected image src, got %s", good)
	}
	bad := r.FormatEntry(schema.MediaEntry("javascript:alert(1)", nil))
	if strings.Contains(bad, "javascript:") {
		t.Fatalf("expected javascript url to be removed, got %s", bad)
	}
}

func TestHTMLRendererMarksErrors(t *testing.T) {
	out := NewHTMLRenderer().FormatEntry(schema.ErrorEntry(schema.ErrorKindTransport, schema.TransportErrorText))
	if !strings.Contains(out, `class="entry error"`) {
		t.Fatalf("expected error class, got %s", out)
	}
}
