package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/NYTimes/gziphandler"
	"golang.org/x/time/rate"

	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/internal/eventbus"
	"pkt.systems/nextvm/internal/format"
	"pkt.systems/nextvm/internal/metrics"
	"pkt.systems/nextvm/internal/version"
	"pkt.systems/nextvm/schema"
)

// CommandRunner runs a command for the execution endpoint and returns its
// standard output. executor.Shell implements it.
type CommandRunner interface {
	Run(ctx context.Context, command string) (string, error)
}

// Deps wires the server to the core service and its collaborators.
// Runner, Bus and Metrics are optional.
type Deps struct {
	Service core.Service
	Runner  CommandRunner
	Hub     *Hub
	Bus     *eventbus.Bus
	Metrics *metrics.Metrics
}

// Server serves the HTTP API and UI.
type Server struct {
	cfg      Config
	service  core.Service
	runner   CommandRunner
	hub      *Hub
	bus      *eventbus.Bus
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	plain    *format.PlainRenderer
	html     *format.HTMLRenderer
	basePath string
	index    *indexPage
	baseCtx  context.Context
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, deps Deps) *Server {
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(0)
	}
	var limiter *rate.Limiter
	if cfg.ExecuteRateLimit > 0 {
		burst := cfg.ExecuteBurst
		if burst <= 0 {
			burst = int(cfg.ExecuteRateLimit)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.ExecuteRateLimit), burst)
	}
	if cfg.InitialLogEntries <= 0 {
		cfg.InitialLogEntries = defaultInitialLogEntries
	}
	return &Server{
		cfg:      cfg,
		service:  deps.Service,
		runner:   deps.Runner,
		hub:      hub,
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		limiter:  limiter,
		plain:    format.NewPlainRenderer(),
		html:     format.NewHTMLRenderer(),
		basePath: normalizeBasePath(cfg.BasePath),
		index:    newIndexPage(buildBaseHref(cfg.BaseURL, cfg.BasePath)),
		baseCtx:  context.Background(),
	}
}

const defaultInitialLogEntries = 500

// SetBaseContext sets the parent context for work that outlives a request,
// such as commands submitted over a WebSocket that disconnects.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.baseCtx = ctx
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/{$}", gziphandler.GzipHandler(s.index))
	mux.Handle("/assets/", gziphandler.GzipHandler(http.StripPrefix("/assets/", http.FileServer(http.FS(assetsFS)))))

	mux.HandleFunc("/api/", s.handleUnknownAPI)
	mux.HandleFunc("/api/execute", s.handleExecute)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/close", s.handleClose)
	mux.HandleFunc("/api/sessions/activate", s.handleActivate)
	mux.HandleFunc("/api/input", s.handleInput)
	mux.HandleFunc("/api/submit", s.handleSubmit)
	mux.Handle("/api/log", gziphandler.GzipHandler(http.HandlerFunc(s.handleLog)))
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/ws", s.handleWS)
	mux.HandleFunc("/api/version", s.handleVersion)
	if s.metrics != nil && s.cfg.EnableMetrics {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return mountBasePath(s.basePath, withRequestLogging(mux, s.metrics))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, version.Build())
}

func (s *Server) handleUnknownAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not Found"})
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method Not Allowed"})
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrExecutorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return err
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
