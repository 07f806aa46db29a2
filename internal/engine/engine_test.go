package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xtxerr/scope/config"
	"github.com/xtxerr/scope/internal/channel"
	"github.com/xtxerr/scope/internal/errors"
	"github.com/xtxerr/scope/internal/event"
	scopetest "github.com/xtxerr/scope/internal/testing"
)

// streamServer is a test websocket endpoint that consumes the subscribe
// handshake and then runs serve on each accepted connection.
type streamServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	accepted int
}

func newStreamServer(t *testing.T, serve func(ws *websocket.Conn, accepted int)) *streamServer {
	t.Helper()
	s := &streamServer{}
	var upgrader websocket.Upgrader
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var sub map[string]any
		if err := ws.ReadJSON(&sub); err != nil {
			ws.Close()
			return
		}

		s.mu.Lock()
		s.accepted++
		n := s.accepted
		s.mu.Unlock()

		serve(ws, n)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *streamServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func holdOpen(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func liveConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.ID = "test"
	cfg.Channel.URL = url
	cfg.Channel.Channels = []string{"metrics", "alerts"}
	return cfg
}

func runEngine(t *testing.T, e *Engine) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	}
}

func TestEngine_LiveIngestion(t *testing.T) {
	srv := newStreamServer(t, func(ws *websocket.Conn, _ int) {
		frames := []string{
			`{"type": "metric", "timestamp": "2026-08-29T10:00:00Z", "service": "api", "data": {"name": "rps", "value": 100}}`,
			`{"type": "metric", "timestamp": "2026-08-29T10:00:10Z", "service": "api", "data": {"name": "rps", "value": 200}}`,
			`{"type": "health", "timestamp": "2026-08-29T10:00:11Z", "service": "api", "data": {"status": "healthy"}}`,
			`{"type": "alert", "timestamp": "2026-08-29T10:00:12Z", "data": {"id": "a-1", "severity": "warning", "title": "t"}}`,
			`{"type": "wholly_new_kind", "timestamp": "2026-08-29T10:00:13Z", "data": {}}`,
		}
		for _, f := range frames {
			ws.WriteMessage(websocket.TextMessage, []byte(f))
		}
		holdOpen(ws)
	})

	e, err := New(liveConfig(srv.url()), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	cancel := runEngine(t, e)
	defer cancel()

	scopetest.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		snap := e.Snapshot()
		return len(snap.Services) == 1 && len(snap.Alerts) == 1 && e.store.Len("api/rps") == 2
	}, "live frames never applied")

	snap := e.Snapshot()
	if snap.Services[0].ID != "api" || snap.Services[0].Status != "healthy" {
		t.Errorf("service = %+v", snap.Services[0])
	}
	if snap.Alerts[0].ID != "a-1" {
		t.Errorf("alert = %+v", snap.Alerts[0])
	}

	stats := e.Stats("api/rps")
	if stats.Count != 2 || stats.Avg != 150 {
		t.Errorf("stats = %+v", stats)
	}

	var values []float64
	for s := range e.Query("api/rps", time.Time{}) {
		values = append(values, s.Value)
	}
	if len(values) != 2 || values[0] != 100 || values[1] != 200 {
		t.Errorf("query values = %v", values)
	}

	if e.ConnState() != channel.StateSubscribed {
		t.Errorf("ConnState = %v, want subscribed", e.ConnState())
	}
}

func TestEngine_StatePreservedAcrossReconnect(t *testing.T) {
	srv := newStreamServer(t, func(ws *websocket.Conn, accepted int) {
		if accepted == 1 {
			ws.WriteMessage(websocket.TextMessage, []byte(
				`{"type": "metric", "timestamp": "2026-08-29T10:00:00Z", "data": {"name": "cpu", "value": 10}}`))
			// Drop the transport; the engine must keep the point.
			ws.Close()
			return
		}
		ws.WriteMessage(websocket.TextMessage, []byte(
			`{"type": "metric", "timestamp": "2026-08-29T10:00:10Z", "data": {"name": "cpu", "value": 20}}`))
		holdOpen(ws)
	})

	cfg := liveConfig(srv.url())
	cfg.Channel.ReconnectInterval = config.Duration(20 * time.Millisecond)

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	cancel := runEngine(t, e)
	defer cancel()

	scopetest.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return e.store.Len("cpu") == 2
	}, "samples from before and after the reconnect never both arrived")

	stats := e.Stats("cpu")
	if stats.Min != 10 || stats.Max != 20 {
		t.Errorf("stats = %+v, want both pre- and post-reconnect samples", stats)
	}
}

func TestEngine_SeedFromHistory(t *testing.T) {
	hist := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"type": "metric", "timestamp": "2026-08-29T09:00:00Z", "service": "api", "data": {"name": "rps", "value": 50}},
			{"type": "incident", "timestamp": "2026-08-29T09:10:00Z", "data": {"id": "inc-1", "status": "open", "title": "t"}}
		]`))
	}))
	defer hist.Close()

	cfg := config.Default()
	cfg.ID = "test"
	cfg.History.URL = hist.URL

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	cancel := runEngine(t, e)
	defer cancel()

	// Seeding happens synchronously before the ingestion path starts.
	scopetest.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return e.store.Len("api/rps") == 1 && len(e.Snapshot().Incidents) == 1
	}, "seed frames never applied")

	if e.ConnState() != channel.StateDisconnected {
		t.Errorf("ConnState = %v, want disconnected on the polling path", e.ConnState())
	}
}

func TestEngine_PollingFallbackWhenDialFails(t *testing.T) {
	hist := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"type": "metric", "timestamp": "2026-08-29T09:00:00Z", "data": {"name": "mem", "value": 512}}
		]`))
	}))
	defer hist.Close()

	cfg := config.Default()
	cfg.ID = "test"
	cfg.Channel.URL = "ws://127.0.0.1:1" // nothing listens here
	cfg.Channel.Channels = []string{"metrics"}
	cfg.Channel.HandshakeTimeout = config.Duration(200 * time.Millisecond)
	cfg.History.URL = hist.URL
	cfg.History.PollInterval = config.Duration(20 * time.Millisecond)

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	cancel := runEngine(t, e)
	defer cancel()

	scopetest.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return e.store.Len("mem") >= 1
	}, "polling fallback never delivered frames")

	if e.ConnState() != channel.StateDisconnected {
		t.Errorf("ConnState = %v, want disconnected", e.ConnState())
	}
}

func TestEngine_LateSeedDiscardedAfterClose(t *testing.T) {
	release := make(chan struct{})
	hist := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`[
			{"type": "metric", "timestamp": "2026-08-29T09:00:00Z", "data": {"name": "late", "value": 1}}
		]`))
	}))
	defer hist.Close()

	cfg := config.Default()
	cfg.ID = "test"
	cfg.History.URL = hist.URL

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	// Close while the seed request is still in flight, then let it resolve.
	time.Sleep(50 * time.Millisecond)
	e.Close()
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	if got := e.store.Len("late"); got != 0 {
		t.Errorf("late seed result was applied: %d samples", got)
	}
}

func TestEngine_OnEvent(t *testing.T) {
	srv := newStreamServer(t, func(ws *websocket.Conn, _ int) {
		ws.WriteMessage(websocket.TextMessage, []byte(
			`{"type": "log", "timestamp": "2026-08-29T10:00:00Z", "data": {"id": "l-1", "level": "info", "message": "m"}}`))
		holdOpen(ws)
	})

	e, err := New(liveConfig(srv.url()), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	var mu sync.Mutex
	var seen []event.Kind
	e.OnEvent(func(ev event.Event) {
		mu.Lock()
		seen = append(seen, ev.Kind)
		mu.Unlock()
	})

	cancel := runEngine(t, e)
	defer cancel()

	scopetest.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == event.KindLog
	}, "observer never saw the applied event")
}

func TestEngine_RunTwice(t *testing.T) {
	srv := newStreamServer(t, func(ws *websocket.Conn, _ int) { holdOpen(ws) })

	e, err := New(liveConfig(srv.url()), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	cancel := runEngine(t, e)
	defer cancel()

	scopetest.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return e.ConnState() == channel.StateSubscribed
	}, "engine never came up")

	if err := e.Run(context.Background()); !errors.Is(err, errors.ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	srv := newStreamServer(t, func(ws *websocket.Conn, _ int) { holdOpen(ws) })

	e, err := New(liveConfig(srv.url()), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	scopetest.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return e.ConnState() == channel.StateSubscribed
	}, "engine never came up")

	if err := e.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	if err := e.Run(context.Background()); !errors.Is(err, errors.ErrEngineClosed) {
		t.Errorf("Run after Close = %v, want ErrEngineClosed", err)
	}
}

func TestEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default() // neither channel.url nor history.url set
	if _, err := New(cfg, nil); !errors.IsValidation(err) {
		t.Errorf("New = %v, want validation error", err)
	}
}

func TestEngine_SnapshotIsolation(t *testing.T) {
	srv := newStreamServer(t, func(ws *websocket.Conn, _ int) {
		ws.WriteMessage(websocket.TextMessage, []byte(
			`{"type": "alert", "timestamp": "2026-08-29T10:00:00Z", "data": {"id": "a-1", "severity": "low", "title": "t"}}`))
		holdOpen(ws)
	})

	e, err := New(liveConfig(srv.url()), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	cancel := runEngine(t, e)
	defer cancel()

	scopetest.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return len(e.Snapshot().Alerts) == 1
	}, "alert never applied")

	snap := e.Snapshot()
	snap.Alerts[0].ID = "mutated"
	if e.Snapshot().Alerts[0].ID != "a-1" {
		t.Error("snapshot mutation leaked into engine state")
	}
}
