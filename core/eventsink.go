package core

import "pkt.systems/nextvm/schema"

// EventSink receives session and output events from the core service.
type EventSink interface {
	OnOutput(event schema.OutputEvent)
	OnSessionEvent(event schema.SessionEvent)
}
