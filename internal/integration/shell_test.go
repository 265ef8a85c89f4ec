package integration_test

import (
	"strings"
	"testing"
	"time"

	"pkt.systems/nextvm"
	"pkt.systems/nextvm/httpapi"
	"pkt.systems/nextvm/schema"
)

func TestLocalShellRoundTrip(t *testing.T) {
	requireLong(t)
	ts := startTestServer(t, nextvm.ServerConfig{
		HTTP: httpapi.Config{Addr: "127.0.0.1:0"},
		Executor: nextvm.ExecutorConfig{
			Mode:       nextvm.ExecutorModeLocal,
			Shell:      "sh",
			WorkingDir: t.TempDir(),
			Timeout:    10 * time.Second,
		},
	}, nextvm.ServerDeps{})

	var ok schema.SubmitResponse
	readJSON(t, writeJSON(t, ts.baseURL+"/api/submit", map[string]any{
		"session_id": 1,
		"input":      `printf '\033[31mred\033[0m plain'`,
	}), &ok)
	last := ok.Entries[len(ok.Entries)-1]
	if last.Kind != schema.EntryRendered || len(last.Spans) != 2 {
		t.Fatalf("expected two rendered spans, got %+v", last)
	}
	if last.Spans[0].Text != "red" || last.Spans[0].Style.Color == "" {
		t.Fatalf("unexpected first span %+v", last.Spans[0])
	}

	var failed schema.SubmitResponse
	readJSON(t, writeJSON(t, ts.baseURL+"/api/submit", map[string]any{
		"session_id": 1,
		"input":      "echo oops >&2",
	}), &failed)
	last = failed.Entries[len(failed.Entries)-1]
	if !last.Error || last.ErrorKind != schema.ErrorKindCommand || !strings.Contains(last.Content, "oops") {
		t.Fatalf("expected stderr to surface as command error, got %+v", last)
	}

	var direct schema.ExecuteResponse
	readJSON(t, writeJSON(t, ts.baseURL+"/api/execute", map[string]any{"command": "echo direct"}), &direct)
	if direct.Result != "direct\n" {
		t.Fatalf("unexpected execute result %q", direct.Result)
	}
}
