package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/internal/eventbus"
	"pkt.systems/nextvm/internal/metrics"
	"pkt.systems/nextvm/schema"
)

type fanoutSink []core.EventSink

func (f fanoutSink) OnOutput(event schema.OutputEvent) {
	for _, sink := range f {
		sink.OnOutput(event)
	}
}

func (f fanoutSink) OnSessionEvent(event schema.SessionEvent) {
	for _, sink := range f {
		sink.OnSessionEvent(event)
	}
}

type testEnv struct {
	server  *Server
	handler http.Handler
	service core.Service
	hub     *Hub
	bus     *eventbus.Bus
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, cfg Config, exec core.Executor) *testEnv {
	t.Helper()
	hub := NewHub(100)
	bus := eventbus.New(nil)
	m := metrics.New()
	service, err := core.NewService(schema.ServiceConfig{Banner: "welcome"}, core.ServiceDeps{
		Executor:  exec,
		EventSink: fanoutSink{hub, bus, m},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	server := NewServer(cfg, Deps{Service: service, Hub: hub, Bus: bus, Metrics: m})
	return &testEnv{server: server, handler: server.Handler(), service: service, hub: hub, bus: bus, metrics: m}
}

func echoExecutor() core.Executor {
	return core.ExecutorFunc(func(_ context.Context, req core.ExecRequest) (core.ExecResult, error) {
		return core.ExecResult{Output: "ran " + req.Command + "\n"}, nil
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doRaw(t *testing.T, h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestSessionsLifecycle(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())

	rec := doJSON(t, env.handler, http.MethodPost, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	var created schema.CreateSessionResponse
	decodeBody(t, rec, &created)
	if created.Session.ID != 2 || created.Session.Title != "Tab 2" {
		t.Fatalf("unexpected created session: %+v", created.Session)
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/api/sessions", nil)
	var list schema.ListSessionsResponse
	decodeBody(t, rec, &list)
	if len(list.Sessions) != 2 || list.ActiveSession != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = doJSON(t, env.handler, http.MethodPost, "/api/sessions/activate", map[string]any{"session_id": 1})
	var activated schema.SetActiveSessionResponse
	decodeBody(t, rec, &activated)
	if activated.ActiveSession != 1 || !activated.Changed {
		t.Fatalf("unexpected activate response: %+v", activated)
	}

	rec = doJSON(t, env.handler, http.MethodPost, "/api/sessions/close", map[string]any{"session_id": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("close status %d: %s", rec.Code, rec.Body.String())
	}
	var closed schema.CloseSessionResponse
	decodeBody(t, rec, &closed)
	if closed.ActiveSession != 2 {
		t.Fatalf("expected active session 2 after close, got %d", closed.ActiveSession)
	}

	rec = doJSON(t, env.handler, http.MethodPost, "/api/sessions/close", map[string]any{"session_id": 1})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for closed session, got %d", rec.Code)
	}
}

func TestSessionsRejectBadPayload(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	rec := doJSON(t, env.handler, http.MethodPost, "/api/sessions/activate", map[string]any{"session": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
	rec = doJSON(t, env.handler, http.MethodPost, "/api/sessions/close", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing session id, got %d", rec.Code)
	}
	rec = doJSON(t, env.handler, http.MethodDelete, "/api/sessions", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSubmitAppendsEchoAndResult(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	rec := doJSON(t, env.handler, http.MethodPost, "/api/submit", map[string]any{"session_id": 1, "input": "  ls -la "})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status %d: %s", rec.Code, rec.Body.String())
	}
	var resp schema.SubmitResponse
	decodeBody(t, rec, &resp)
	if !resp.Submitted || resp.Command != "ls -la" {
		t.Fatalf("unexpected submit response: %+v", resp)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].Content != "root@next:~# ls -la" {
		t.Fatalf("unexpected entries: %+v", resp.Entries)
	}
	if resp.Session.Input != "" {
		t.Fatalf("expected input cleared, got %q", resp.Session.Input)
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/api/history?session_id=1", nil)
	var history schema.GetHistoryResponse
	decodeBody(t, rec, &history)
	if len(history.Entries) != 1 || history.Entries[0] != "ls -la" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestSubmitUsesStoredInput(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	rec := doJSON(t, env.handler, http.MethodPost, "/api/input", map[string]any{"session_id": 1, "input": "clear"})
	if rec.Code != http.StatusOK {
		t.Fatalf("input status %d", rec.Code)
	}
	rec = doJSON(t, env.handler, http.MethodPost, "/api/submit", map[string]any{"session_id": 1})
	var resp schema.SubmitResponse
	decodeBody(t, rec, &resp)
	if !resp.Reset || len(resp.Entries) != 1 || !resp.Entries[0].Banner {
		t.Fatalf("expected clear to reset log to banner, got %+v", resp)
	}
}

func TestSubmitUnknownSessionIs404(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	rec := doJSON(t, env.handler, http.MethodPost, "/api/submit", map[string]any{"session_id": 42, "input": "ls"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != schema.ErrSessionNotFound.Error() {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestLogFormats(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	doJSON(t, env.handler, http.MethodPost, "/api/submit", map[string]any{"session_id": 1, "input": "whoami"})

	rec := doJSON(t, env.handler, http.MethodGet, "/api/log?session_id=1", nil)
	var logResp schema.GetLogResponse
	decodeBody(t, rec, &logResp)
	if logResp.Log.TotalEntries != 3 {
		t.Fatalf("expected 3 entries, got %+v", logResp.Log)
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/api/log?session_id=1&format=text", nil)
	text := rec.Body.String()
	if !strings.Contains(text, "root@next:~# whoami\nran whoami\n") {
		t.Fatalf("unexpected text log: %q", text)
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/api/log?session_id=1&format=html", nil)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `class="entry echo"`) {
		t.Fatalf("expected echo entry markup, got %s", rec.Body.String())
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/api/log?session_id=1&format=xml", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
	rec = doJSON(t, env.handler, http.MethodGet, "/api/log", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session id, got %d", rec.Code)
	}
}

func TestIndexServesUI(t *testing.T) {
	env := newTestEnv(t, Config{BasePath: "/term"}, echoExecutor())
	rec := doJSON(t, env.handler, http.MethodGet, "/term/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "+ Add Tab") {
		t.Fatalf("expected add tab button in UI")
	}
	if !strings.Contains(body, `<base href="/term/" />`) {
		t.Fatalf("expected base href to be applied")
	}

	rec = doJSON(t, env.handler, http.MethodGet, "/term", nil)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	rec = doJSON(t, env.handler, http.MethodGet, "/term/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUnknownAPIRouteReturnsJSONNotFound(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	rec := doJSON(t, env.handler, http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json error, got content type %q", ct)
	}
	var payload map[string]string
	decodeBody(t, rec, &payload)
	if payload["error"] != "Not Found" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	rec := doJSON(t, env.handler, http.MethodGet, "/api/sessions", nil)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, Config{EnableMetrics: true}, echoExecutor())
	doJSON(t, env.handler, http.MethodGet, "/api/sessions", nil)
	rec := doJSON(t, env.handler, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `nextvm_http_requests_total{method="GET",path="/api/sessions",status="200"}`) {
		t.Fatalf("expected request counter in metrics output")
	}

	disabled := newTestEnv(t, Config{}, echoExecutor())
	rec = doJSON(t, disabled.handler, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected metrics to be disabled, got %d", rec.Code)
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/api/submit":     "/api/submit",
		"/assets/app.css": "/assets/",
		"/nope/1234":      "other",
	}
	for in, want := range cases {
		if got := routeLabel(in); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
