package core

import (
	"pkt.systems/nextvm/internal/ansi"
	"pkt.systems/nextvm/schema"
)

// Renderer turns successful command output into an output entry.
type Renderer interface {
	RenderResult(output string) schema.OutputEntry
}

type ansiRenderer struct{}

// NewANSIRenderer returns the default renderer, which parses ANSI SGR
// sequences into styled spans.
func NewANSIRenderer() Renderer {
	return ansiRenderer{}
}

func (ansiRenderer) RenderResult(output string) schema.OutputEntry {
	if output == "" {
		return schema.TextEntry(schema.NoOutputText)
	}
	return schema.RenderedEntry(ansi.Parse(output))
}
