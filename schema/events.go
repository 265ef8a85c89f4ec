package schema

// OutputEvent represents entries appended to a session log. When Reset is set
// the entries replace the whole log.
type OutputEvent struct {
	SessionID SessionID
	Entries   []OutputEntry
	Reset     bool
}

// SessionEventType describes session lifecycle or state changes.
type SessionEventType string

const (
	// SessionEventCreated indicates a session was created.
	SessionEventCreated SessionEventType = "created"
	// SessionEventClosed indicates a session was closed.
	SessionEventClosed SessionEventType = "closed"
	// SessionEventActivated indicates a session became active.
	SessionEventActivated SessionEventType = "activated"
	// SessionEventInput indicates a session input buffer changed.
	SessionEventInput SessionEventType = "input"
	// SessionEventTheme indicates the theme URL changed.
	SessionEventTheme SessionEventType = "theme"
)

// SessionEvent represents a change to a session or the session list.
type SessionEvent struct {
	Type          SessionEventType
	Session       SessionSnapshot
	ActiveSession SessionID
	Theme         ThemeURL
}
