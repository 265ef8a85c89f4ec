package httpapi

import (
	"errors"
	"net/http"

	"pkt.systems/nextvm/internal/logx"
	"pkt.systems/nextvm/schema"
)

const maxExecuteBody = 1 << 20

// handleExecute is the execution endpoint: POST {"command"} answers 200
// {"result"} with the command's stdout, or 500 {"error"} when the command
// failed to run or wrote anything to stderr.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.observeExecute("rejected")
		writeMethodNotAllowed(w)
		return
	}
	log := logx.Ctx(r.Context())
	if s.limiter != nil && !s.limiter.Allow() {
		s.observeExecute("limited")
		log.Warn("http execute rate limited")
		writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
		return
	}
	if s.runner == nil {
		s.observeExecute("error")
		writeError(w, http.StatusServiceUnavailable, schema.ErrExecutorUnavailable)
		return
	}
	var payload schema.ExecuteRequest
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxExecuteBody), &payload); err != nil {
		s.observeExecute("rejected")
		log.Warn("http execute decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := schema.NormalizeCommand(payload.Command); err != nil {
		s.observeExecute("rejected")
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.runner.Run(r.Context(), payload.Command)
	if err != nil {
		s.observeExecute("error")
		log.Info("http execute failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, schema.ExecuteErrorResponse{Error: err.Error()})
		return
	}
	s.observeExecute("ok")
	writeJSON(w, http.StatusOK, schema.ExecuteResponse{Result: out})
}

func (s *Server) observeExecute(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveExecute(outcome)
	}
}
