// Package command recognises the pseudo-commands handled by the session store
// without reaching the execution endpoint.
package command

import (
	"strings"
)

// Kind classifies a submitted command line.
type Kind int

const (
	// KindShell is an ordinary command forwarded to the executor.
	KindShell Kind = iota
	// KindClear resets the session output log.
	KindClear
	// KindShowImage renders an image entry.
	KindShowImage
	// KindTheme changes the terminal theme URL.
	KindTheme
)

func (k Kind) String() string {
	switch k {
	case KindClear:
		return "clear"
	case KindShowImage:
		return "showimage"
	case KindTheme:
		return "theme"
	default:
		return "shell"
	}
}

const (
	clearName     = "clear"
	showImageName = "showimage"
	themeName     = "nextvm"
)

// Command represents a classified command line.
type Command struct {
	Kind      Kind
	Name      string
	Args      []string
	Raw       string
	Remainder string
}

// Parse classifies a trimmed command line. The whole line must equal "clear"
// for KindClear; showimage and nextvm are matched on the first token.
func Parse(input string) Command {
	raw := strings.TrimSpace(input)
	cmd := Command{Kind: KindShell, Raw: raw}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return cmd
	}
	cmd.Name = fields[0]
	if len(fields) > 1 {
		cmd.Args = fields[1:]
	}
	cmd.Remainder = remainderAfterTokens(raw, 1)
	switch {
	case raw == clearName:
		cmd.Kind = KindClear
	case cmd.Name == showImageName:
		cmd.Kind = KindShowImage
	case cmd.Name == themeName:
		cmd.Kind = KindTheme
	}
	return cmd
}

func remainderAfterTokens(raw string, count int) string {
	i := 0
	remaining := count
	for remaining > 0 && i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
		remaining--
	}
	if i >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
