package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"pkt.systems/nextvm/internal/logx"
	"pkt.systems/nextvm/internal/metrics"
	"pkt.systems/pslog"
)

const requestIDHeader = "X-Request-ID"

type responseRecorder struct {
	status int
	bytes  int64
	writer http.ResponseWriter
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.writer.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.writer.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack unsupported")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func withRequestLogging(next http.Handler, m *metrics.Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		logger := pslog.Ctx(r.Context()).With("request_id", requestID, "remote", clientIP(r))
		ctx := logx.ContextWithRequestID(pslog.ContextWithLogger(r.Context(), logger), requestID)

		rec := &responseRecorder{writer: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		if m != nil {
			m.ObserveRequest(r.Method, routeLabel(r.URL.Path), status, duration)
		}
		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path = path + "?" + r.URL.RawQuery
		}
		logger.Info("http request", "method", r.Method, "path", path, "status", status, "bytes", rec.bytes, "duration_ms", duration.Milliseconds())
		logger.Debug("http request details", "ua", r.UserAgent())
	})
}

var knownRoutes = map[string]struct{}{
	"/":                      {},
	"/api/execute":           {},
	"/api/sessions":          {},
	"/api/sessions/close":    {},
	"/api/sessions/activate": {},
	"/api/input":             {},
	"/api/submit":            {},
	"/api/log":               {},
	"/api/history":           {},
	"/api/stream":            {},
	"/api/ws":                {},
	"/api/version":           {},
	"/metrics":               {},
}

// routeLabel bounds the metrics path label to registered routes.
func routeLabel(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	if strings.HasPrefix(path, "/assets/") {
		return "/assets/"
	}
	return "other"
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	return r.RemoteAddr
}
