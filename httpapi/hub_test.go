package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/schema"
)

func TestHubNumbersAndReplays(t *testing.T) {
	hub := NewHub(3)
	for i := 0; i < 5; i++ {
		hub.OnOutput(schema.OutputEvent{SessionID: 1, Entries: []schema.OutputEntry{schema.TextEntry("x")}})
	}
	events, complete := hub.Replay(3)
	if !complete || len(events) != 2 || events[0].Seq != 4 || events[1].Seq != 5 {
		t.Fatalf("unexpected replay: complete=%v events=%+v", complete, events)
	}
	if _, complete := hub.Replay(1); complete {
		t.Fatalf("expected trimmed history to report incomplete replay")
	}
	if _, complete := hub.Replay(9); complete {
		t.Fatalf("expected future sequence to report incomplete replay")
	}
}

func TestHubSubscribeReceivesEvents(t *testing.T) {
	hub := NewHub(10)
	sub := hub.Subscribe(0)
	defer sub.Close()
	hub.OnSessionEvent(schema.SessionEvent{Type: schema.SessionEventCreated, Session: schema.SessionSnapshot{ID: 2}, ActiveSession: 2})
	select {
	case event := <-sub.C:
		if event.Type != "session" || event.SessionEvent != "created" || event.ActiveSession != 2 {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	sub.Close()
	sub.Close()
}

func TestStreamSendsSnapshotThenLiveEvents(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)

	first := readSSEvent(t, reader)
	if first.Type != "snapshot" || first.Snapshot == nil {
		t.Fatalf("expected snapshot first, got %+v", first)
	}
	if len(first.Snapshot.Sessions) != 1 || first.Snapshot.ActiveSession != 1 {
		t.Fatalf("unexpected snapshot: %+v", first.Snapshot)
	}
	if log := first.Snapshot.Logs[1]; len(log.Entries) != 1 || !log.Entries[0].Banner {
		t.Fatalf("expected banner in snapshot log, got %+v", log)
	}

	if _, err := env.service.CreateSession(context.Background(), schema.CreateSessionRequest{}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	next := readSSEvent(t, reader)
	if next.Type != "session" || next.SessionEvent != "created" || next.SessionID != 2 {
		t.Fatalf("expected created event, got %+v", next)
	}
	if next.Seq == 0 {
		t.Fatalf("expected live events to carry a sequence number")
	}
}

func TestStreamReplaysAfterLastEventID(t *testing.T) {
	env := newTestEnv(t, Config{}, echoExecutor())
	for i := 0; i < 2; i++ {
		if _, err := env.service.CreateSession(context.Background(), schema.CreateSessionRequest{}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	event := readSSEvent(t, bufio.NewReader(resp.Body))
	if event.Type != "session" || event.Seq != 2 || event.SessionID != 3 {
		t.Fatalf("expected replay of seq 2, got %+v", event)
	}
}

func TestStreamDeliversConcurrentSubmitsOnce(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	exec := core.ExecutorFunc(func(_ context.Context, req core.ExecRequest) (core.ExecResult, error) {
		if req.Command == "slow" {
			close(started)
			<-release
		}
		return core.ExecResult{Output: "ran " + req.Command + "\n"}, nil
	})
	env := newTestEnv(t, Config{}, exec)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	reader := bufio.NewReader(resp.Body)
	if first := readSSEvent(t, reader); first.Type != "snapshot" {
		t.Fatalf("expected snapshot first, got %+v", first)
	}

	post := func(input string) {
		body := strings.NewReader(`{"session_id":1,"input":"` + input + `"}`)
		resp, err := http.Post(srv.URL+"/api/submit", "application/json", body)
		if err != nil {
			t.Errorf("submit %s: %v", input, err)
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("submit %s status %d", input, resp.StatusCode)
		}
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		post("slow")
	}()
	<-started
	post("fast")
	close(release)
	wg.Wait()

	var seqs []uint64
	for len(seqs) < 4 {
		event := readSSEvent(t, reader)
		if event.Type != "output" {
			continue
		}
		for _, entry := range event.Entries {
			seqs = append(seqs, entry.Seq)
		}
	}
	for i, seq := range seqs {
		if seq != uint64(i+2) {
			t.Fatalf("stream delivered entry seqs %v, want 2..5 in order", seqs)
		}
	}
}

func readSSEvent(t *testing.T, reader *bufio.Reader) StreamEvent {
	t.Helper()
	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimSpace(strings.TrimPrefix(line, "data: "))
				return
			}
		}
	}()
	select {
	case line := <-lines:
		var event StreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		return event
	case err := <-errs:
		t.Fatalf("read stream: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for stream event")
	}
	return StreamEvent{}
}
