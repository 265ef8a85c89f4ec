package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pkt.systems/nextvm/internal/logx"
	"pkt.systems/nextvm/schema"
)

const streamKeepalive = 25 * time.Second

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	sub := s.hub.Subscribe(lastID)
	defer sub.Close()
	if s.metrics != nil {
		s.metrics.StreamConnected("sse")
		defer s.metrics.StreamDisconnected("sse")
	}

	replayed := 0
	if lastID > 0 && sub.Complete {
		for _, event := range sub.Backlog {
			_ = writeSSEvent(w, event)
		}
		replayed = len(sub.Backlog)
	} else {
		snapshot := s.buildSnapshot(r.Context())
		_ = writeSSEvent(w, StreamEvent{
			Seq:       sub.Seq,
			Type:      "snapshot",
			Snapshot:  &snapshot,
			Timestamp: time.Now(),
		})
	}
	flusher.Flush()
	log.Info("http stream opened", "last_id", lastID, "replay", replayed)

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			log.Info("http stream closed")
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSEvent(w, event); err != nil {
				log.Debug("http stream write failed", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

// buildSnapshot collects the session list and the tail of every session log.
func (s *Server) buildSnapshot(ctx context.Context) SnapshotPayload {
	resp, err := s.service.ListSessions(ctx, schema.ListSessionsRequest{})
	if err != nil {
		return SnapshotPayload{}
	}
	logs := make(map[schema.SessionID]schema.LogSnapshot, len(resp.Sessions))
	for _, session := range resp.Sessions {
		logResp, err := s.service.GetLog(ctx, schema.GetLogRequest{
			SessionID: session.ID,
			Limit:     s.cfg.InitialLogEntries,
		})
		if err != nil {
			continue
		}
		logs[session.ID] = logResp.Log
	}
	return SnapshotPayload{
		Sessions:      resp.Sessions,
		ActiveSession: resp.ActiveSession,
		Logs:          logs,
		Theme:         resp.Theme,
	}
}
