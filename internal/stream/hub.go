package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/models"
)

// Constants for WebSocket timeouts
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client buffer on top of the replayed backlog.
	sendBufSize = 32
)

// Hub fans out change events to WebSocket subscribers. New subscribers first
// receive the backlog, then live events, with no gap or duplicate between the
// two.
type Hub struct {
	backlog        *Backlog
	upgrader       websocket.Upgrader
	allowedOrigins []string
	logger         zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// NewHub creates a hub that retains backlogSize events for replay.
func NewHub(backlogSize int, logger zerolog.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		backlog:        NewBacklog(backlogSize),
		allowedOrigins: allowedOrigins,
		logger:         logger,
		clients:        make(map[*client]struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: origin not in allowlist")
	return false
}

// Publish records an event and queues it for every subscriber. Subscribers
// whose buffer is full are disconnected. Safe to call on a nil Hub.
func (h *Hub) Publish(eventType models.EventType, payload interface{}) {
	if h == nil {
		return
	}

	event, err := models.NewEvent(eventType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(eventType)).Msg("Failed to build event")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(eventType)).Msg("Failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.backlog.Add(event)
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Str("remote", c.addr).Msg("Subscriber too slow, disconnecting")
			h.removeLocked(c)
		}
	}

	h.logger.Debug().Str("type", string(eventType)).Int("subscribers", len(h.clients)).Msg("Event published")
}

// ServeHTTP upgrades the request and streams events until the client goes
// away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response
		h.logger.Debug().Err(err).Msg("Failed to upgrade connection")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize+h.backlog.capacity),
		addr: conn.RemoteAddr().String(),
	}
	if !h.register(c) {
		conn.Close()
		return
	}
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Run blocks until ctx is cancelled, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats reports backlog statistics.
func (h *Hub) Stats() BacklogStats {
	return h.backlog.Stats()
}

// register queues the backlog for c and adds it to the fan-out set under one
// lock, so no event published concurrently is missed or sent twice.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	for _, event := range h.backlog.Snapshot() {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		c.send <- data
	}
	h.clients[c] = struct{}{}

	h.logger.Info().Str("remote", c.addr).Int("subscribers", len(h.clients)).Msg("Subscriber connected")
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.removeLocked(c)
		h.logger.Info().Str("remote", c.addr).Msg("Subscriber disconnected")
	}
}

func (h *Hub) removeLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// writePump drains the send channel and pings the peer. It owns all writes
// to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "")) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles control frames; subscribers never send data.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
