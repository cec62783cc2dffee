// Package relay manages a single subscription on a single relay websocket.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"nostr-torrent/internal/nostr"
	"nostr-torrent/internal/types"
)

// State is the lifecycle position of a Conn
type State int32

const (
	StateConnecting State = iota
	StateOpen                // handshake done, REQ sent
	StateStreaming           // at least one frame received
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// MessageKind identifies what a Message reports
type MessageKind int

const (
	MessageOpened MessageKind = iota
	MessageEvent
	MessageEOSE
	MessageClosed
)

func (k MessageKind) String() string {
	switch k {
	case MessageOpened:
		return "opened"
	case MessageEvent:
		return "event"
	case MessageEOSE:
		return "eose"
	case MessageClosed:
		return "closed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is what a Conn reports to its owner.
// Event is set for MessageEvent; Err may be set for MessageClosed.
type Message struct {
	Kind  MessageKind
	Relay string
	SubID string
	Event types.Event
	Err   error
}

// ErrSubscriptionClosed is reported when the relay sends CLOSED for our subscription
var ErrSubscriptionClosed = errors.New("subscription closed by relay")

// DefaultHandshakeTimeout bounds the websocket handshake
const DefaultHandshakeTimeout = 10 * time.Second

// Options configures a Conn
type Options struct {
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer // overrides HandshakeTimeout when set
}

func (o Options) dialer() *websocket.Dialer {
	if o.Dialer != nil {
		return o.Dialer
	}
	timeout := o.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: timeout,
	}
}

// Conn owns one websocket to one relay and one subscription on it.
// All reports go to the out channel passed to New; once Close returns,
// nothing more is sent.
type Conn struct {
	url    string
	subID  string
	filter types.SubscriptionFilter
	out    chan<- Message
	dialer *websocket.Dialer

	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	ws      *websocket.Conn
	closed  bool
	started bool
	done    chan struct{}
}

// New creates a connection that is not yet dialed.
// Cancelling ctx has the same effect as Close.
func New(ctx context.Context, relayURL, subID string, filter types.SubscriptionFilter, out chan<- Message, opts Options) *Conn {
	cctx, cancel := context.WithCancel(ctx)
	return &Conn{
		url:    relayURL,
		subID:  subID,
		filter: filter,
		out:    out,
		dialer: opts.dialer(),
		ctx:    cctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// URL returns the relay endpoint
func (c *Conn) URL() string {
	return c.url
}

// State returns the current lifecycle state
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Start dials in the background. It never blocks.
func (c *Conn) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	go c.run()
}

// Close tears the connection down. It is safe to call more than once and
// from any goroutine except the owner's receive path for out.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ws := c.ws
	started := c.started
	c.mu.Unlock()

	c.cancel()
	if ws != nil {
		ws.Close()
	}
	c.state.Store(int32(StateClosed))

	if started {
		<-c.done
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// deliver hands a message to the owner unless the connection is being torn down
func (c *Conn) deliver(msg Message) bool {
	if c.isClosed() {
		return false
	}
	msg.Relay = c.url
	msg.SubID = c.subID
	select {
	case c.out <- msg:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// fail reports a terminal error and closes the socket
func (c *Conn) fail(err error) {
	c.state.Store(int32(StateClosed))
	c.deliver(Message{Kind: MessageClosed, Err: err})

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
}

func (c *Conn) run() {
	defer close(c.done)

	ws, _, err := c.dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		if c.ctx.Err() == nil {
			slog.Debug("relay: dial failed", "relay", c.url, "error", err)
			c.fail(fmt.Errorf("dial %s: %w", c.url, err))
		}
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	// under mu so a concurrent Close always has the last word
	c.state.Store(int32(StateOpen))
	c.mu.Unlock()

	if !c.deliver(Message{Kind: MessageOpened}) {
		return
	}

	req, err := nostr.EncodeReq(c.subID, c.filter)
	if err != nil {
		c.fail(fmt.Errorf("encode REQ: %w", err))
		return
	}
	if err := ws.WriteMessage(websocket.TextMessage, req); err != nil {
		if !c.isClosed() {
			c.fail(fmt.Errorf("send REQ to %s: %w", c.url, err))
		}
		return
	}

	c.readLoop(ws)
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				slog.Debug("relay: read error", "relay", c.url, "error", err)
				c.fail(fmt.Errorf("read from %s: %w", c.url, err))
			}
			return
		}

		c.state.CompareAndSwap(int32(StateOpen), int32(StateStreaming))

		frame, err := nostr.DecodeFrame(data)
		if err != nil {
			// A corrupt frame does not end the subscription
			slog.Debug("relay: dropped frame", "relay", c.url, "error", err)
			continue
		}

		switch frame.Type {
		case nostr.FrameEvent:
			if frame.SubID != c.subID {
				continue
			}
			evt := frame.Event
			evt.Relay = c.url
			if !c.deliver(Message{Kind: MessageEvent, Event: evt}) {
				return
			}

		case nostr.FrameEOSE:
			if frame.SubID != c.subID {
				continue
			}
			if !c.deliver(Message{Kind: MessageEOSE}) {
				return
			}

		case nostr.FrameClosed:
			if frame.SubID != c.subID {
				continue
			}
			c.fail(fmt.Errorf("%w: %s", ErrSubscriptionClosed, frame.Message))
			return

		case nostr.FrameNotice:
			slog.Debug("relay: notice", "relay", c.url, "notice", frame.Message)
		}
	}
}
