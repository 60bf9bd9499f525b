package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/auth"
	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/stream"
)

const testToken = "test-token-123"

// mockStreamServer serves a real hub behind a bearer check. restart swaps
// in a fresh hub, dropping every connected subscriber.
type mockStreamServer struct {
	server *httptest.Server
	mu     sync.Mutex
	hub    *stream.Hub
	cancel context.CancelFunc
}

func newMockStreamServer(t *testing.T) *mockStreamServer {
	t.Helper()

	m := &mockStreamServer{}
	m.restart()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		m.currentHub().ServeHTTP(w, r)
	})

	m.server = httptest.NewServer(handler)
	t.Cleanup(m.Close)
	return m
}

func (m *mockStreamServer) restart() {
	hub := stream.NewHub(10, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.hub = hub
	m.cancel = cancel
	m.mu.Unlock()
}

func (m *mockStreamServer) currentHub() *stream.Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hub
}

func (m *mockStreamServer) URL() string {
	return "ws" + strings.TrimPrefix(m.server.URL, "http")
}

func (m *mockStreamServer) Close() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.server.Close()
}

// collector records received events
type collector struct {
	mu     sync.Mutex
	events []*models.Event
}

func (c *collector) handle(e *models.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) snapshot() []*models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.Event(nil), c.events...)
}

func (c *collector) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.len() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Received %d events, want %d", c.len(), n)
}

func createTestSubscriber(url, token string) *Subscriber {
	return NewSubscriber(SubscriberConfig{
		URL:                  url,
		AuthToken:            token,
		ReconnectInterval:    50 * time.Millisecond,
		MaxReconnectInterval: 200 * time.Millisecond,
		PongTimeout:          2 * time.Second,
	}, zerolog.Nop())
}

func waitConnected(t *testing.T, hub *stream.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Hub has %d subscribers, want %d", hub.Count(), n)
}

func TestConnectionState_String(t *testing.T) {
	tests := map[ConnectionState]string{
		StateDisconnected:   "disconnected",
		StateConnecting:     "connecting",
		StateConnected:      "connected",
		ConnectionState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

func TestNewSubscriber_Defaults(t *testing.T) {
	s := NewSubscriber(SubscriberConfig{URL: "ws://example"}, zerolog.Nop())

	if s.State() != StateDisconnected {
		t.Errorf("Initial state = %v, want %v", s.State(), StateDisconnected)
	}
	if s.reconnectInterval != time.Second || s.maxReconnectInterval != 30*time.Second {
		t.Errorf("Unexpected backoff defaults: %v / %v", s.reconnectInterval, s.maxReconnectInterval)
	}
}

func TestSubscriber_ReceivesBacklogAndLive(t *testing.T) {
	server := newMockStreamServer(t)
	server.currentHub().Publish(models.EventSensorCreated, models.Ref{ID: 1})

	sub := createTestSubscriber(server.URL(), testToken)
	got := &collector{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, got.handle) }()

	got.waitFor(t, 1)
	waitConnected(t, server.currentHub(), 1)
	if !sub.IsConnected() {
		t.Error("Should be connected")
	}

	server.currentHub().Publish(models.EventAlertCreated, models.Ref{ID: 2})
	got.waitFor(t, 2)

	events := got.snapshot()
	if events[0].Type != models.EventSensorCreated || events[1].Type != models.EventAlertCreated {
		t.Errorf("Unexpected event order: %s, %s", events[0].Type, events[1].Type)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if sub.IsConnected() {
		t.Error("Should be disconnected after Run returns")
	}
}

func TestSubscriber_Unauthorized(t *testing.T) {
	server := newMockStreamServer(t)
	sub := createTestSubscriber(server.URL(), "wrong")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := sub.Run(ctx, func(*models.Event) {})
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("Expected auth.ErrUnauthorized, got %v", err)
	}
}

func TestSubscriber_ConnectFailure(t *testing.T) {
	sub := createTestSubscriber("ws://127.0.0.1:1/api/stream", testToken)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := sub.Connect(ctx); err == nil {
		t.Error("Connect should fail when nothing is listening")
	}
	if sub.IsConnected() {
		t.Error("Should not be connected after failed Connect()")
	}
}

func TestSubscriber_ReconnectAfterDrop(t *testing.T) {
	server := newMockStreamServer(t)
	sub := createTestSubscriber(server.URL(), testToken)
	got := &collector{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx, got.handle)

	waitConnected(t, server.currentHub(), 1)
	first := server.currentHub()

	server.restart()
	waitConnected(t, first, 0)
	waitConnected(t, server.currentHub(), 1)

	server.currentHub().Publish(models.EventReadingCreated, models.Ref{ID: 3})
	got.waitFor(t, 1)
}
