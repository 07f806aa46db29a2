// Package channel manages the lifecycle of one live update connection:
// connect, subscribe, receive, close, reconnect.
//
// A connection is owned by exactly one engine instance. Its subscription is
// immutable for the connection's lifetime; a new subscription requires a new
// connection cycle. On transport failure the connection transitions to
// Reconnecting and retries at a fixed interval indefinitely until Close is
// called; there is no backoff growth and no retry limit.
package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtxerr/scope/config"
	"github.com/xtxerr/scope/internal/errors"
	"github.com/xtxerr/scope/internal/logging"
	"github.com/xtxerr/scope/internal/metrics"
	"github.com/xtxerr/scope/internal/syncutil"
)

var log = logging.Component("channel")

// Subscription describes what the connection asks the server to stream.
type Subscription struct {
	Channels []string       `json:"channels"`
	Filter   map[string]any `json:"filter,omitempty"`
}

// subscribeMsg is the handshake sent immediately after the transport opens.
type subscribeMsg struct {
	Type     string         `json:"type"`
	Channels []string       `json:"channels"`
	Filter   map[string]any `json:"filter,omitempty"`
}

// Config holds connection configuration.
type Config struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Subscription is fixed for the connection's lifetime.
	Subscription Subscription

	// ReconnectInterval is the fixed delay between retries.
	ReconnectInterval time.Duration

	// HandshakeTimeout bounds the dial and subscribe write.
	HandshakeTimeout time.Duration

	// MaxFrameSize limits inbound frame size.
	MaxFrameSize int64

	// FrameBuffer is the inbound frame channel capacity.
	FrameBuffer int

	// OnState, if set, is called after every state change.
	OnState func(State)
}

// DefaultConfig returns default connection configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectInterval: config.DefaultReconnectInterval,
		HandshakeTimeout:  config.DefaultHandshakeTimeout,
		MaxFrameSize:      config.DefaultMaxFrameSize,
		FrameBuffer:       config.DefaultFrameBufferSize,
	}
}

func (c *Config) applyDefaults() {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = config.DefaultReconnectInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = config.DefaultHandshakeTimeout
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = config.DefaultMaxFrameSize
	}
	if c.FrameBuffer <= 0 {
		c.FrameBuffer = config.DefaultFrameBufferSize
	}
}

// Conn is one live channel connection.
type Conn struct {
	cfg Config

	// State management with validated transitions.
	state atomic.Int32

	mu sync.Mutex // guards ws
	ws *websocket.Conn

	frames   chan []byte
	shutdown chan struct{}

	closeOnce syncutil.ResettableOnce
	met       *metrics.Set
}

// Open establishes the transport, sends the subscribe handshake, and starts
// the receive loop. The protocol is ack-less: the connection is Subscribed
// as soon as the handshake is written.
//
// If the transport cannot be established at all, the error wraps
// errors.ErrConnectionFailed and the caller should fall back to polling.
// Failures after a successful Open are handled internally by the
// reconnect loop.
func Open(ctx context.Context, cfg Config, met *metrics.Set) (*Conn, error) {
	cfg.applyDefaults()

	if cfg.URL == "" {
		return nil, errors.NewMissingField("channel.url")
	}
	if len(cfg.Subscription.Channels) == 0 {
		return nil, errors.NewMissingField("channel.subscription.channels")
	}

	c := &Conn{
		cfg:      cfg,
		frames:   make(chan []byte, cfg.FrameBuffer),
		shutdown: make(chan struct{}),
		met:      met,
	}

	if !c.transitionFrom(StateDisconnected, StateConnecting) {
		return nil, errors.ErrInvalidTransition
	}

	ws, err := c.dial(ctx)
	if err != nil {
		c.transitionFrom(StateConnecting, StateDisconnected)
		return nil, err
	}

	c.ws = ws
	if !c.transitionFrom(StateConnecting, StateSubscribed) {
		ws.Close()
		return nil, errors.ErrInvalidTransition
	}

	go c.run()

	log.Info("channel subscribed", "url", cfg.URL, "channels", cfg.Subscription.Channels)
	return c, nil
}

// dial opens the transport and writes the subscribe handshake.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errors.ErrConnectionFailed, c.cfg.URL, err)
	}

	ws.SetReadLimit(c.cfg.MaxFrameSize)

	ws.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	err = ws.WriteJSON(subscribeMsg{
		Type:     "subscribe",
		Channels: c.cfg.Subscription.Channels,
		Filter:   c.cfg.Subscription.Filter,
	})
	ws.SetWriteDeadline(time.Time{})
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("%w: %v", errors.ErrHandshakeFailed, err)
	}

	return ws, nil
}

// run alternates between reading frames and reconnecting, forever,
// until Close.
func (c *Conn) run() {
	for {
		c.readLoop()

		if c.closed() {
			return
		}

		// Transport failed. Keep whatever state the engine has; stale
		// but present beats empty.
		c.transitionTo(StateReconnecting)
		c.closeTransport()

		if !c.reconnect() {
			return
		}
	}
}

// readLoop forwards raw frames until the transport errors.
func (c *Conn) readLoop() {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !c.closed() {
				log.Warn("transport read failed", "error", err)
			}
			return
		}

		select {
		case c.frames <- data:
		case <-c.shutdown:
			return
		}
	}
}

// reconnect retries the transport at a fixed interval until it succeeds or
// the connection is closed. Returns false when closed.
func (c *Conn) reconnect() bool {
	for {
		select {
		case <-c.shutdown:
			return false
		case <-time.After(c.cfg.ReconnectInterval):
		}

		if !c.transitionFrom(StateReconnecting, StateConnecting) {
			return false
		}
		if c.met != nil {
			c.met.Reconnects.Inc()
		}

		ws, err := c.dial(context.Background())
		if err != nil {
			log.Warn("reconnect failed", "url", c.cfg.URL, "error", err)
			if !c.transitionFrom(StateConnecting, StateReconnecting) {
				return false
			}
			continue
		}

		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()

		if !c.transitionFrom(StateConnecting, StateSubscribed) {
			ws.Close()
			return false
		}

		log.Info("channel resubscribed", "url", c.cfg.URL)
		return true
	}
}

// Frames returns the inbound frame channel. It is never closed; callers
// should also select on Done.
func (c *Conn) Frames() <-chan []byte {
	return c.frames
}

// Done is closed when the connection has been closed.
func (c *Conn) Done() <-chan struct{} {
	return c.shutdown
}

// State returns the current connection state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Subscription returns the immutable subscription.
func (c *Conn) Subscription() Subscription {
	return c.cfg.Subscription
}

// Close releases the transport and stops further reconnection attempts.
// It is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.forceState(StateClosed)
		close(c.shutdown)
		c.closeTransport()
		log.Info("channel closed", "url", c.cfg.URL)
	})
	return nil
}

func (c *Conn) closed() bool {
	return c.closeOnce.Done() || c.State() == StateClosed
}

func (c *Conn) closeTransport() {
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.mu.Unlock()
}

// =============================================================================
// State transitions
// =============================================================================

// transitionFrom attempts a validated transition from a specific state.
func (c *Conn) transitionFrom(from, to State) bool {
	if !validTransitions[stateTransition{from: from, to: to}] {
		return false
	}
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	c.notifyState(to)
	return true
}

// transitionTo attempts a validated transition from whatever the current
// state is. Returns false if no valid edge exists.
func (c *Conn) transitionTo(to State) bool {
	for {
		from := c.State()
		if !validTransitions[stateTransition{from: from, to: to}] {
			return false
		}
		if c.state.CompareAndSwap(int32(from), int32(to)) {
			c.notifyState(to)
			return true
		}
	}
}

// forceState sets the state unconditionally. Only Close uses this; Closed
// is reachable from every state.
func (c *Conn) forceState(to State) {
	c.state.Store(int32(to))
	c.notifyState(to)
}

func (c *Conn) notifyState(s State) {
	if c.met != nil {
		c.met.ConnState.Set(float64(s))
	}
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}
