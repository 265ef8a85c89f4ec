package core

import "pkt.systems/nextvm/schema"

// session tracks the state of a single terminal tab.
type session struct {
	ID      schema.SessionID
	input   string
	buffer  *buffer
	history *historyBuffer
}

// Snapshot returns a transport-friendly view of the session.
func (s *session) Snapshot(active bool) schema.SessionSnapshot {
	return schema.SessionSnapshot{
		ID:      s.ID,
		Title:   schema.SessionTitle(s.ID),
		Input:   s.input,
		Entries: s.buffer.Len(),
		Active:  active,
	}
}
