package eventbus

import (
	"context"
	"sync"

	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventOutput carries output entries for a session.
	EventOutput EventType = "output"
	// EventSession carries session lifecycle updates.
	EventSession EventType = "session"
)

// Event represents a UI-facing event emitted by the core service.
type Event struct {
	Type    EventType
	Output  schema.OutputEvent
	Session schema.SessionEvent
}

// AllSessions subscribes to output from every session.
const AllSessions schema.SessionID = 0

type subscriber struct {
	session schema.SessionID
}

// Bus fans events out to subscribers. Output events reach subscribers
// following that session or AllSessions; session events reach everyone.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]subscriber
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]subscriber),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe(session schema.SessionID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = subscriber{session: session}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "session", int(session), "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.Debug("eventbus unsubscribe", "session", int(session))
			}
		})
	}
}

// OnOutput publishes an output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(event.SessionID, Event{Type: EventOutput, Output: event})
}

// OnSessionEvent publishes a session event.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	b.publish(AllSessions, Event{Type: EventSession, Session: event})
}

func (b *Bus) publish(session schema.SessionID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs))
	for ch, sub := range b.subs {
		if session != AllSessions && sub.session != AllSessions && sub.session != session {
			continue
		}
		subs = append(subs, ch)
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "session", int(session), "count", dropped)
	}
}
