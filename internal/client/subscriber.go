package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/auth"
	"github.com/afroash/env-monitor/internal/models"
)

// ConnectionState represents the current state of the connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventHandler is called for every event received, in order.
type EventHandler func(*models.Event)

// Subscriber follows the server's event stream, reconnecting with exponential
// backoff when the connection drops.
type Subscriber struct {
	URL       string
	AuthToken string

	conn       *websocket.Conn
	state      ConnectionState
	stateMutex sync.RWMutex
	logger     zerolog.Logger

	reconnectInterval        time.Duration
	maxReconnectInterval     time.Duration
	currentReconnectInterval time.Duration
	pongTimeout              time.Duration
}

// SubscriberConfig holds configuration for the subscriber
type SubscriberConfig struct {
	URL                  string
	AuthToken            string
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	// PongTimeout is how long the connection may stay silent (no event and
	// no server ping) before it is considered dead.
	PongTimeout time.Duration
}

// NewSubscriber creates a new stream subscriber
func NewSubscriber(config SubscriberConfig, logger zerolog.Logger) *Subscriber {
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = time.Second
	}
	if config.MaxReconnectInterval < config.ReconnectInterval {
		config.MaxReconnectInterval = 30 * time.Second
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = 90 * time.Second
	}

	return &Subscriber{
		URL:                      config.URL,
		AuthToken:                config.AuthToken,
		state:                    StateDisconnected,
		logger:                   logger,
		reconnectInterval:        config.ReconnectInterval,
		maxReconnectInterval:     config.MaxReconnectInterval,
		currentReconnectInterval: config.ReconnectInterval,
		pongTimeout:              config.PongTimeout,
	}
}

// setState safely updates the connection state
func (s *Subscriber) setState(state ConnectionState) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.state = state
	s.logger.Debug().Str("state", state.String()).Msg("Connection state updated")
}

// State returns the current connection state
func (s *Subscriber) State() ConnectionState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.state
}

// IsConnected returns true if currently connected
func (s *Subscriber) IsConnected() bool {
	return s.State() == StateConnected
}

// Connect dials the stream endpoint. A 401 response is returned as
// auth.ErrUnauthorized.
func (s *Subscriber) Connect(ctx context.Context) error {
	s.setState(StateConnecting)
	s.logger.Info().Str("url", s.URL).Msg("Connecting to event stream...")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.AuthToken)

	conn, resp, err := dialer.DialContext(ctx, s.URL, header)
	if err != nil {
		s.setState(StateDisconnected)
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: server rejected token", auth.ErrUnauthorized)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	defer resp.Body.Close()

	s.stateMutex.Lock()
	s.conn = conn
	s.stateMutex.Unlock()

	s.setState(StateConnected)
	s.currentReconnectInterval = s.reconnectInterval // reset backoff
	s.logger.Info().Msg("Subscribed to event stream")
	return nil
}

// Run delivers events to handle until ctx is cancelled, reconnecting as
// needed. It returns ctx.Err() on cancellation, or auth.ErrUnauthorized if
// the server rejects the token, since retrying cannot fix that.
func (s *Subscriber) Run(ctx context.Context, handle EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.Connect(ctx); err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				return err
			}
			s.logger.Warn().Err(err).Msg("Connection failed")
			s.waitBeforeReconnect(ctx)
			continue
		}

		s.readLoop(ctx, handle)
		s.disconnect()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info().Msg("Connection lost, will reconnect")
		s.waitBeforeReconnect(ctx)
	}
}

// waitBeforeReconnect waits before next reconnection attempt with exponential backoff
func (s *Subscriber) waitBeforeReconnect(ctx context.Context) {
	s.logger.Info().Dur("delay", s.currentReconnectInterval).Msg("Waiting before reconnect")
	select {
	case <-time.After(s.currentReconnectInterval):
	case <-ctx.Done():
		return
	}
	s.currentReconnectInterval *= 2
	if s.currentReconnectInterval > s.maxReconnectInterval {
		s.currentReconnectInterval = s.maxReconnectInterval
	}
}

// readLoop reads events until the connection fails or ctx is done.
func (s *Subscriber) readLoop(ctx context.Context, handle EventHandler) {
	s.logger.Debug().Msg("Starting read loop")
	defer s.logger.Debug().Msg("Read loop stopped")

	conn := s.conn
	stop := make(chan struct{})
	defer close(stop)

	// Unblock ReadJSON on cancellation
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		var event models.Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		s.logger.Debug().Str("type", string(event.Type)).Msg("Received event")
		handle(&event)
	}
}

// disconnect closes the WebSocket connection
func (s *Subscriber) disconnect() {
	s.stateMutex.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = StateDisconnected
	s.stateMutex.Unlock()
	s.logger.Info().Msg("Connection disconnected")
}
