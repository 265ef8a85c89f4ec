package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/nextvm/internal/logx"
	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

// StreamEvent is sent to SSE and WebSocket clients.
type StreamEvent struct {
	Seq           uint64                  `json:"seq,omitempty"`
	Type          string                  `json:"type"`
	SessionEvent  string                  `json:"session_event,omitempty"`
	SessionID     schema.SessionID        `json:"session_id,omitempty"`
	Entries       []schema.OutputEntry    `json:"entries,omitempty"`
	Reset         bool                    `json:"reset,omitempty"`
	Session       *schema.SessionSnapshot `json:"session,omitempty"`
	ActiveSession schema.SessionID        `json:"active_session,omitempty"`
	Theme         schema.ThemeURL         `json:"theme,omitempty"`
	Snapshot      *SnapshotPayload        `json:"snapshot,omitempty"`
	Error         string                  `json:"error,omitempty"`
	Timestamp     time.Time               `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Sessions      []schema.SessionSnapshot                `json:"sessions"`
	ActiveSession schema.SessionID                        `json:"active_session"`
	Logs          map[schema.SessionID]schema.LogSnapshot `json:"logs"`
	Theme         schema.ThemeURL                         `json:"theme,omitempty"`
}

func outputStreamEvent(event schema.OutputEvent) StreamEvent {
	return StreamEvent{
		Type:      "output",
		SessionID: event.SessionID,
		Entries:   event.Entries,
		Reset:     event.Reset,
		Timestamp: time.Now(),
	}
}

func sessionStreamEvent(event schema.SessionEvent) StreamEvent {
	session := event.Session
	return StreamEvent{
		Type:          "session",
		SessionEvent:  string(event.Type),
		SessionID:     session.ID,
		Session:       &session,
		ActiveSession: event.ActiveSession,
		Theme:         event.Theme,
		Timestamp:     time.Now(),
	}
}

// Hub numbers events, keeps a bounded history for Last-Event-ID replay and
// broadcasts to SSE subscribers.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		log:         pslog.Ctx(context.Background()),
	}
}

// OnOutput implements core.EventSink.
func (h *Hub) OnOutput(event schema.OutputEvent) {
	logx.WithSession(context.Background(), event.SessionID).Trace("hub output event", "entries", len(event.Entries), "reset", event.Reset)
	h.publish(outputStreamEvent(event))
}

// OnSessionEvent implements core.EventSink.
func (h *Hub) OnSessionEvent(event schema.SessionEvent) {
	h.log.Trace("hub session event", "type", event.Type, "session", int(event.Session.ID), "active", int(event.ActiveSession))
	h.publish(sessionStreamEvent(event))
}

// Subscription is a live feed of hub events.
type Subscription struct {
	// C delivers events published after the subscription was created.
	C <-chan StreamEvent
	// Seq is the sequence number of the last event published before C.
	Seq uint64
	// Backlog holds retained events after the requested sequence.
	Backlog []StreamEvent
	// Complete reports whether Backlog covers every event after the
	// requested sequence. It is false when history was trimmed past it.
	Complete bool

	cancel func()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// Subscribe registers a subscriber. Events retained after the given sequence
// are returned as the backlog; pass 0 to skip replay.
func (h *Hub) Subscribe(after uint64) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	sub := &Subscription{C: ch, Seq: h.seq}
	if after > 0 {
		sub.Backlog, sub.Complete = h.replayLocked(after)
	}
	h.log.Info("hub subscribe", "subs", len(h.subs), "after", after, "backlog", len(sub.Backlog))
	var once sync.Once
	sub.cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			h.log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return sub
}

// Replay returns retained events after the provided seq and whether the
// retained history reaches back that far.
func (h *Hub) Replay(after uint64) ([]StreamEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replayLocked(after)
}

func (h *Hub) replayLocked(after uint64) ([]StreamEvent, bool) {
	if after > h.seq {
		return nil, false
	}
	complete := len(h.history) == 0 && after == h.seq
	if len(h.history) > 0 {
		complete = after+1 >= h.history[0].Seq
	}
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	h.log.Debug("hub replay", "after", after, "count", len(events), "complete", complete)
	return events, complete
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		h.log.Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
