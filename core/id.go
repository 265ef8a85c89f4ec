package core

import "pkt.systems/nextvm/schema"

// idSequence hands out session ids. Ids increase for the lifetime of the
// process and are never reused. Callers hold the service mutex.
type idSequence struct {
	last schema.SessionID
}

func (s *idSequence) next() schema.SessionID {
	s.last++
	return s.last
}
