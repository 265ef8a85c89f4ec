package schema

import "fmt"

// SessionSnapshot is a read-only view of session state for transports.
type SessionSnapshot struct {
	ID      SessionID `json:"id"`
	Title   string    `json:"title"`
	Input   string    `json:"input"`
	Entries int       `json:"entries"`
	Active  bool      `json:"active"`
}

// LogSnapshot is a view of a session's output log.
type LogSnapshot struct {
	SessionID    SessionID     `json:"session_id"`
	Entries      []OutputEntry `json:"entries"`
	TotalEntries int           `json:"total_entries"`
}

// SessionTitle returns the tab label shown for a session.
func SessionTitle(id SessionID) string {
	return fmt.Sprintf("Tab %d", id)
}
