package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

const DefaultReconnectDelay = 3 * time.Second

var ErrNotConnected = errors.New("live channel not connected")

// ConnState is the lifecycle of the single connection a Channel owns.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Open
	Closing
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}

type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventClosed
)

// Event is delivered on Channel.Events in receive order. Gen identifies the
// scope activation that produced it; consumers drop events whose Gen is not
// the one SetScope last returned.
type Event struct {
	Gen     uint64
	Scope   string
	Kind    EventKind
	Message protocol.Message
}

type Options struct {
	// URL maps a scope identifier to the websocket endpoint.
	URL            func(scope string) string
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Buffer         int
}

// Channel keeps at most one websocket open for the current scope and
// reconnects after unexpected closes. It never interprets message content.
type Channel struct {
	opts   Options
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	scope  string
	gen    uint64
	state  ConnState
	conn   *websocket.Conn
	cancel context.CancelFunc
	timer  *time.Timer
	closed bool

	writeMu sync.Mutex
}

func NewChannel(opts Options) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	return &Channel{
		opts:   opts,
		events: make(chan Event, opts.Buffer),
		done:   make(chan struct{}),
	}
}

func (c *Channel) Events() <-chan Event {
	return c.events
}

// SetScope switches the channel to a new scope and returns its generation.
// The previous connection, pending dial and reconnect timer are torn down
// before the new connection is started. An empty scope leaves the channel
// disconnected.
func (c *Channel) SetScope(scope string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || scope == c.scope {
		return c.gen
	}

	c.teardownLocked()
	c.scope = scope
	if scope != "" {
		c.connectLocked()
	}
	return c.gen
}

func (c *Channel) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send writes v as a JSON frame on the open connection.
func (c *Channel) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Close tears down the connection and stops delivering events.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.teardownLocked()
	c.scope = ""
	c.mu.Unlock()
	close(c.done)
}

func (c *Channel) teardownLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.state = Closing
		conn := c.conn
		c.conn = nil
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	c.state = Disconnected
}

func (c *Channel) connectLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = Connecting
	go c.dial(ctx, c.gen, c.scope, c.opts.URL(c.scope))
}

func (c *Channel) dial(ctx context.Context, gen uint64, scope, endpoint string) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, endpoint, nil)

	c.mu.Lock()
	if gen != c.gen {
		// Torn down while connecting: the socket must not outlive the scope.
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.releaseLocked()
		slog.Warn("live channel connect failed", "scope", scope, "error", err)
		c.scheduleReconnectLocked(gen)
		c.mu.Unlock()
		return
	}
	c.conn = conn
	c.state = Open
	c.mu.Unlock()

	slog.Info("live channel connected", "scope", scope)
	c.emit(Event{Gen: gen, Scope: scope, Kind: EventOpened})
	c.read(gen, scope, conn)
}

func (c *Channel) read(gen uint64, scope string, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("dropping malformed frame", "scope", scope, "error", err)
			continue
		}
		c.emit(Event{Gen: gen, Scope: scope, Kind: EventMessage, Message: msg})
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.releaseLocked()
	c.scheduleReconnectLocked(gen)
	c.mu.Unlock()

	_ = conn.Close()
	slog.Warn("live channel closed unexpectedly", "scope", scope)
	c.emit(Event{Gen: gen, Scope: scope, Kind: EventClosed})
}

func (c *Channel) releaseLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Disconnected
}

// scheduleReconnectLocked arms the single reconnect timer for gen.
func (c *Channel) scheduleReconnectLocked(gen uint64) {
	if c.timer != nil || c.closed {
		return
	}
	c.timer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.closed {
			return
		}
		c.timer = nil
		slog.Info("live channel reconnecting", "scope", c.scope)
		c.connectLocked()
	})
}

func (c *Channel) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Endpoint builds the websocket URL for a scope. http maps to ws and https
// to wss; the scope is path-escaped into the last segment.
func Endpoint(baseURL, prefix, scope string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}

	var scheme string
	switch u.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend url %q has no host", baseURL)
	}

	path := strings.TrimRight(u.Path, "/")
	if p := strings.Trim(prefix, "/"); p != "" {
		path += "/" + p
	}
	return fmt.Sprintf("%s://%s%s/%s", scheme, u.Host, path, url.PathEscape(scope)), nil
}
