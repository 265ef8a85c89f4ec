package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/nextvm/internal/eventbus"
	"pkt.systems/nextvm/internal/logx"
	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header and requests whose
// Origin host matches the Host header.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, host, ok := strings.Cut(origin, "://")
	return ok && strings.EqualFold(host, r.Host)
}

// wsMessage is a client message on /api/ws.
type wsMessage struct {
	Type      string           `json:"type"`
	SessionID schema.SessionID `json:"session_id,omitempty"`
	Input     *string          `json:"input,omitempty"`
}

// wsConn serialises writes; gorilla/websocket allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// handleWS streams a snapshot followed by live bus events. An optional
// session_id query parameter limits output events to one session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("websocket stream unavailable"))
		return
	}
	filter := eventbus.AllSessions
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		id, err := schema.ParseSessionID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter = id
	}
	log := logx.Ctx(r.Context())
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("http ws upgrade failed", "err", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer func() { _ = raw.Close() }()

	events, unsubscribe := s.bus.Subscribe(filter)
	defer unsubscribe()
	if s.metrics != nil {
		s.metrics.StreamConnected("ws")
		defer s.metrics.StreamDisconnected("ws")
	}

	snapshot := s.buildSnapshot(r.Context())
	if err := conn.writeJSON(StreamEvent{Type: "snapshot", Snapshot: &snapshot, Timestamp: time.Now()}); err != nil {
		log.Debug("http ws snapshot failed", "err", err)
		return
	}
	log.Info("http ws opened", "session_filter", int(filter))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.wsWriteLoop(ctx, cancel, conn, events, log)

	raw.SetReadLimit(wsMaxMessage)
	_ = raw.SetReadDeadline(time.Now().Add(wsPongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var msg wsMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debug("http ws read failed", "err", err)
			}
			break
		}
		s.handleWSMessage(r, conn, msg)
	}
	log.Info("http ws closed")
}

func (s *Server) wsWriteLoop(ctx context.Context, cancel context.CancelFunc, conn *wsConn, events <-chan eventbus.Event, log pslog.Logger) {
	defer cancel()
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.conn.Close()
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				_ = conn.conn.Close()
				return
			}
		case event, ok := <-events:
			if !ok {
				_ = conn.conn.Close()
				return
			}
			var out StreamEvent
			switch event.Type {
			case eventbus.EventOutput:
				out = outputStreamEvent(event.Output)
			case eventbus.EventSession:
				out = sessionStreamEvent(event.Session)
			default:
				continue
			}
			if err := conn.writeJSON(out); err != nil {
				log.Debug("http ws write failed", "err", err)
				_ = conn.conn.Close()
				return
			}
		}
	}
}

func (s *Server) handleWSMessage(r *http.Request, conn *wsConn, msg wsMessage) {
	switch msg.Type {
	case "ping":
		_ = conn.writeJSON(StreamEvent{Type: "pong", Timestamp: time.Now()})
	case "input":
		if msg.SessionID <= 0 || msg.Input == nil {
			_ = conn.writeJSON(wsError(schema.ErrInvalidRequest))
			return
		}
		if _, err := s.service.UpdateInput(r.Context(), schema.UpdateInputRequest{SessionID: msg.SessionID, Input: *msg.Input}); err != nil {
			_ = conn.writeJSON(wsError(err))
		}
	case "submit":
		if msg.SessionID <= 0 {
			_ = conn.writeJSON(wsError(schema.ErrInvalidRequest))
			return
		}
		// The command keeps running if the socket closes; its output still
		// reaches the session log.
		ctx := logx.CopyContextFields(pslog.ContextWithLogger(s.baseCtx, pslog.Ctx(r.Context())), r.Context())
		req := r.WithContext(ctx)
		go func() {
			resp, err := s.submit(req, msg.SessionID, msg.Input)
			if err != nil {
				_ = conn.writeJSON(wsError(err))
				return
			}
			session := resp.Session
			_ = conn.writeJSON(StreamEvent{
				Type:      "submitted",
				SessionID: session.ID,
				Session:   &session,
				Timestamp: time.Now(),
			})
		}()
	default:
		_ = conn.writeJSON(wsError(errors.New("unknown message type")))
	}
}

func wsError(err error) StreamEvent {
	return StreamEvent{Type: "error", Error: err.Error(), Timestamp: time.Now()}
}
