package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/gorilla/websocket"
)

// DefaultReconnectWait is the fixed delay between connection attempts.
const DefaultReconnectWait = 3 * time.Second

// ErrNotConnected is returned by Send while the channel is down.
var ErrNotConnected = errors.New("push channel not connected")

// Channel is a push channel that reconnects forever on a fixed interval.
//
// Callbacks run on the channel goroutine. Nothing is replayed across
// reconnects: consumers rebuild their state from scratch in OnOpen.
type Channel struct {
	name    string
	url     string
	wait    time.Duration
	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics *observability.Metrics

	onOpen    func(*Channel)
	onMessage func([]byte)
	onClose   func(error)

	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures the Channel.
type Option func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithMetrics records connection attempts.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Channel) {
		c.metrics = m
	}
}

// WithReconnectWait sets the delay between attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.wait = d
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) {
		c.dialer = d
	}
}

// OnOpen is called after every successful connection, before any message is read.
func OnOpen(fn func(*Channel)) Option {
	return func(c *Channel) {
		c.onOpen = fn
	}
}

// OnMessage is called for every inbound message.
func OnMessage(fn func([]byte)) Option {
	return func(c *Channel) {
		c.onMessage = fn
	}
}

// OnClose is called once when an established connection is lost.
func OnClose(fn func(error)) Option {
	return func(c *Channel) {
		c.onClose = fn
	}
}

// New creates a channel for the given websocket address. Call Run to connect.
func New(name, url string, opts ...Option) *Channel {
	c := &Channel{
		name:      name,
		url:       url,
		wait:      DefaultReconnectWait,
		dialer:    websocket.DefaultDialer,
		logger:    logging.NewNop(),
		onOpen:    func(*Channel) {},
		onMessage: func([]byte) {},
		onClose:   func(error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the channel name used in logs and metrics.
func (c *Channel) Name() string {
	return c.name
}

// Send writes a text message on the current connection.
func (c *Channel) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Run connects and reads until ctx is cancelled, reconnecting after every
// failure or loss. It always returns ctx.Err().
func (c *Channel) Run(ctx context.Context) error {
	for {
		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.logger.Debug("push channel down", "channel", c.name, "err", err, "retry_in", c.wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.wait):
		}
	}
}

// session runs one connection from dial to loss.
func (c *Channel) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.metrics.Reconnect(c.name, "failed")
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.metrics.Reconnect(c.name, "connected")
	c.logger.Info("push channel connected", "channel", c.name, "url", c.url)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.onOpen(c)

	var readErr error
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		c.onMessage(msg)
	}

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Warn("push channel lost", "channel", c.name, "err", readErr)
	c.onClose(readErr)
	return readErr
}
