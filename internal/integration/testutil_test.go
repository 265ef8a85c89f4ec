package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"pkt.systems/nextvm"
	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/httpapi"
	"pkt.systems/nextvm/schema"
)

type testServer struct {
	server  nextvm.Server
	baseURL string
}

type mockRunner struct{}

func (mockRunner) Run(_ context.Context, command string) (string, error) {
	return "\x1b[32mmock response\x1b[0m for " + command + "\n", nil
}

// newTestServer starts a server whose session store and execution endpoint
// both answer with mockRunner.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return startTestServer(t, nextvm.ServerConfig{
		Service: schema.ServiceConfig{Banner: "welcome to nextvm"},
		HTTP:    httpapi.Config{Addr: "127.0.0.1:0"},
		Executor: nextvm.ExecutorConfig{
			Mode:    nextvm.ExecutorModeLocal,
			Timeout: 10 * time.Second,
		},
	}, nextvm.ServerDeps{
		Runner: mockRunner{},
		ServiceDeps: core.ServiceDeps{Executor: core.ExecutorFunc(func(ctx context.Context, req core.ExecRequest) (core.ExecResult, error) {
			out, err := mockRunner{}.Run(ctx, req.Command)
			return core.ExecResult{Output: out}, err
		})},
	})
}

func startTestServer(t *testing.T, cfg nextvm.ServerConfig, deps nextvm.ServerDeps) *testServer {
	t.Helper()
	srv, err := nextvm.New(cfg, deps, nextvm.WithHTTP(), nextvm.WithWebSocket())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return &testServer{server: srv, baseURL: "http://" + srv.Addr()}
}

func writeJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func readJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("NEXTVM_LONG_TESTS") == "" {
		t.Skip("set NEXTVM_LONG_TESTS=1 to run integration tests")
	}
}

func containsAll(value string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(value, term) {
			return false
		}
	}
	return true
}
