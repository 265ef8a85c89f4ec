package schema

// SessionID identifies a terminal session (a tab in the UI).
type SessionID int

// ThemeURL points at a stylesheet or background selected with the nextvm command.
type ThemeURL string

// EntryKind tags the variant carried by an OutputEntry.
type EntryKind string

const (
	// EntryText is a plain text entry.
	EntryText EntryKind = "text"
	// EntryRendered is an entry rendered from ANSI-coloured text.
	EntryRendered EntryKind = "rendered"
	// EntryMedia is an embedded image entry.
	EntryMedia EntryKind = "media"
)

// ErrorKind classifies error-flagged entries so transports can style them.
type ErrorKind string

const (
	// ErrorKindInvalidImageURL marks a showimage call without a URL.
	ErrorKindInvalidImageURL ErrorKind = "invalid_image_url"
	// ErrorKindInvalidThemeURL marks a nextvm call without a URL.
	ErrorKindInvalidThemeURL ErrorKind = "invalid_theme_url"
	// ErrorKindCommand marks an error reported by the execution endpoint.
	ErrorKindCommand ErrorKind = "command_execution"
	// ErrorKindTransport marks a failed request to the execution endpoint.
	ErrorKindTransport ErrorKind = "transport"
)

// SpanStyle is the style applied to a StyledSpan. Empty fields mean default.
type SpanStyle struct {
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// IsZero reports whether the style carries no overrides.
func (s SpanStyle) IsZero() bool {
	return s.Color == "" && s.BackgroundColor == ""
}

// StyledSpan is a run of visible text sharing one style.
type StyledSpan struct {
	Text  string    `json:"text"`
	Style SpanStyle `json:"style"`
}

// OutputEntry is one item of a session's output log.
type OutputEntry struct {
	Seq       uint64            `json:"seq"`
	Kind      EntryKind         `json:"kind"`
	Content   string            `json:"content,omitempty"`
	Spans     []StyledSpan      `json:"spans,omitempty"`
	URL       string            `json:"url,omitempty"`
	Style     map[string]string `json:"style,omitempty"`
	Error     bool              `json:"error,omitempty"`
	ErrorKind ErrorKind         `json:"error_kind,omitempty"`
	Echo      bool              `json:"echo,omitempty"`
	Banner    bool              `json:"banner,omitempty"`
}

// TextEntry returns a plain text entry.
func TextEntry(content string) OutputEntry {
	return OutputEntry{Kind: EntryText, Content: content}
}

// ErrorEntry returns an error-flagged text entry.
func ErrorEntry(kind ErrorKind, content string) OutputEntry {
	return OutputEntry{Kind: EntryText, Content: content, Error: true, ErrorKind: kind}
}

// RenderedEntry returns an entry carrying styled spans.
func RenderedEntry(spans []StyledSpan) OutputEntry {
	return OutputEntry{Kind: EntryRendered, Spans: spans}
}

// MediaEntry returns an image entry with optional style overrides.
func MediaEntry(url string, style map[string]string) OutputEntry {
	return OutputEntry{Kind: EntryMedia, URL: url, Style: style}
}
