package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"pkt.systems/nextvm/internal/logx"
	"pkt.systems/nextvm/schema"
)

type sessionPayload struct {
	SessionID schema.SessionID `json:"session_id"`
}

func (p sessionPayload) validate() error {
	if p.SessionID <= 0 {
		return fmt.Errorf("%w: session_id is required", schema.ErrInvalidRequest)
	}
	return nil
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.ListSessions(r.Context(), schema.ListSessionsRequest{})
		if err != nil {
			log.Warn("http sessions list failed", "err", err)
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http sessions list ok", "count", len(resp.Sessions))
	case http.MethodPost:
		resp, err := s.service.CreateSession(r.Context(), schema.CreateSessionRequest{})
		if err != nil {
			log.Warn("http sessions create failed", "err", err)
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http sessions create ok", "session", int(resp.Session.ID))
	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	log := logx.Ctx(r.Context())
	var payload sessionPayload
	if err := s.decodeSessionPayload(r, &payload); err != nil {
		log.Warn("http close decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.CloseSession(r.Context(), schema.CloseSessionRequest{SessionID: payload.SessionID})
	if err != nil {
		log.Warn("http close failed", "session", int(payload.SessionID), "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http close ok", "session", int(payload.SessionID), "active", int(resp.ActiveSession))
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	log := logx.Ctx(r.Context())
	var payload sessionPayload
	if err := s.decodeSessionPayload(r, &payload); err != nil {
		log.Warn("http activate decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.SetActiveSession(r.Context(), schema.SetActiveSessionRequest{SessionID: payload.SessionID})
	if err != nil {
		log.Warn("http activate failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http activate ok", "session", int(payload.SessionID), "changed", resp.Changed)
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		SessionID schema.SessionID `json:"session_id"`
		Input     string           `json:"input"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http input decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := (sessionPayload{SessionID: payload.SessionID}).validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.UpdateInput(r.Context(), schema.UpdateInputRequest{
		SessionID: payload.SessionID,
		Input:     payload.Input,
	})
	if err != nil {
		log.Warn("http input failed", "session", int(payload.SessionID), "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Trace("http input ok", "session", int(payload.SessionID), "input_len", len(payload.Input))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		SessionID schema.SessionID `json:"session_id"`
		Input     *string          `json:"input"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http submit decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := (sessionPayload{SessionID: payload.SessionID}).validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.submit(r, payload.SessionID, payload.Input)
	if err != nil {
		log.Warn("http submit failed", "session", int(payload.SessionID), "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http submit ok", "session", int(payload.SessionID), "submitted", resp.Submitted, "entries", len(resp.Entries))
}

// submit optionally replaces the input buffer and then submits it.
func (s *Server) submit(r *http.Request, id schema.SessionID, input *string) (schema.SubmitResponse, error) {
	ctx := logx.ContextWithSession(r.Context(), id)
	if input != nil {
		if _, err := s.service.UpdateInput(ctx, schema.UpdateInputRequest{SessionID: id, Input: *input}); err != nil {
			return schema.SubmitResponse{}, err
		}
	}
	return s.service.Submit(ctx, schema.SubmitRequest{SessionID: id})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	log := logx.Ctx(r.Context())
	id, err := schema.ParseSessionID(r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: session_id is required", err))
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	resp, err := s.service.GetLog(r.Context(), schema.GetLogRequest{SessionID: id, Limit: limit})
	if err != nil {
		log.Warn("http log failed", "session", int(id), "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "", "json":
		writeJSON(w, http.StatusOK, resp)
	case "text":
		lines := s.plain.FormatLog(resp.Log.Entries)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if len(lines) > 0 {
			_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
		}
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s.html.FormatLog(resp.Log.Entries)))
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unsupported format", schema.ErrInvalidRequest))
		return
	}
	log.Debug("http log ok", "session", int(id), "entries", len(resp.Log.Entries))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	log := logx.Ctx(r.Context())
	id, err := schema.ParseSessionID(r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: session_id is required", err))
		return
	}
	resp, err := s.service.GetHistory(r.Context(), schema.GetHistoryRequest{SessionID: id})
	if err != nil {
		log.Warn("http history failed", "session", int(id), "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http history ok", "session", int(id), "entries", len(resp.Entries))
}

func (s *Server) decodeSessionPayload(r *http.Request, payload *sessionPayload) error {
	if err := decodeJSON(r.Body, payload); err != nil {
		return err
	}
	return payload.validate()
}
