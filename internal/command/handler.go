package command

import (
	"fmt"

	"pkt.systems/nextvm/schema"
)

// Outcome is the local result of a pseudo-command.
type Outcome struct {
	// Entries are appended after the echo entry.
	Entries []schema.OutputEntry
	// Reset replaces the output log with a fresh banner.
	Reset bool
	// Theme is set when a nextvm command selected a new theme URL.
	Theme schema.ThemeURL
	// Err is the recovered failure, if any.
	Err error
}

// Resolve handles pseudo-commands locally. ok is false for KindShell, in
// which case the command must be dispatched to the executor.
func Resolve(cmd Command) (Outcome, bool) {
	switch cmd.Kind {
	case KindClear:
		return Outcome{Reset: true}, true
	case KindShowImage:
		img, err := ParseShowImage(cmd)
		if err != nil {
			return Outcome{
				Entries: []schema.OutputEntry{schema.ErrorEntry(schema.ErrorKindInvalidImageURL, schema.InvalidImageURLText)},
				Err:     err,
			}, true
		}
		return Outcome{Entries: []schema.OutputEntry{schema.MediaEntry(img.URL, img.Style)}}, true
	case KindTheme:
		if len(cmd.Args) == 0 {
			return Outcome{
				Entries: []schema.OutputEntry{schema.ErrorEntry(schema.ErrorKindInvalidThemeURL, schema.InvalidThemeURLText)},
				Err:     schema.ErrInvalidThemeURL,
			}, true
		}
		url := cmd.Args[0]
		return Outcome{
			Entries: []schema.OutputEntry{schema.TextEntry(fmt.Sprintf("[Terminal theme changed to: %s]", url))},
			Theme:   schema.ThemeURL(url),
		}, true
	default:
		return Outcome{}, false
	}
}
