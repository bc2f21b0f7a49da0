// Package transport delivers pose commands to the robot daemon with
// minimal latency. It prefers a persistent WebSocket stream and falls
// back to one-shot HTTP requests while the stream is not open.
//
// Stream lifecycle is an explicit state machine:
//
//	Disconnected -> Connecting -> Open
//	Open -> Closed on any abnormal close
//	Closed -> Connecting on a bounded auto-reconnect, or on external Connect
//
// Send-level failures are logged and discarded: the control loop's next
// tick supersedes the lost command. Only connection-level failures drive
// the reconnect machinery.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robokit/go-teleop/internal/httpc"
	"github.com/robokit/go-teleop/internal/log"
	"github.com/robokit/go-teleop/pkg/pose"
	"github.com/robokit/go-teleop/pkg/protocol"
)

// State is the stream connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Config holds the channel endpoints and reconnect policy.
type Config struct {
	StreamURL   string // ws:// move stream
	FallbackURL string // http:// daemon base for one-shot requests

	MaxReconnects    int           // automatic reconnect attempts after abnormal closes
	ReconnectDelay   time.Duration // fixed delay between attempts
	FallbackTimeout  time.Duration // one-shot request timeout
	HandshakeTimeout time.Duration // ws dial timeout
}

// Defaults applied when a Config field is zero.
const (
	DefaultMaxReconnects    = 5
	DefaultReconnectDelay   = time.Second
	DefaultFallbackTimeout  = 2 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second

	writeWait      = 5 * time.Second
	writeQueueSize = 16
)

// streamConn is the subset of *websocket.Conn the channel uses.
type streamConn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Channel owns one stream connection and its fallback path.
type Channel struct {
	cfg Config

	// Test seams. Production dials gorilla websockets and POSTs through
	// the shared short-timeout client.
	dial     func(url string) (streamConn, error)
	post     func(body []byte) error
	schedule func(d time.Duration, f func()) *time.Timer

	mu         sync.Mutex
	state      State
	conn       streamConn
	attempts   int
	gen        uint64 // bumped on Disconnect; stale callbacks no-op
	retryTimer *time.Timer

	// Per-connection write queue. The writer goroutine is the only
	// thing that touches the stream, so a stalled connection never
	// blocks the control loop.
	writeCh   chan streamWrite
	writeStop chan struct{}
}

// streamWrite is one queued stream write and its completion.
type streamWrite struct {
	msg  *protocol.Message
	done func()
}

// New creates a channel for the given endpoints. The stream is not
// dialed until Connect is called.
func New(cfg Config) *Channel {
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = DefaultMaxReconnects
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = DefaultFallbackTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}

	c := &Channel{
		cfg:      cfg,
		schedule: time.AfterFunc,
	}

	dialer := &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	c.dial = func(url string) (streamConn, error) {
		conn, _, err := dialer.Dial(url, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	client := httpc.NewClient(cfg.FallbackTimeout)
	target := cfg.FallbackURL + "/api/move/set_target"
	c.post = func(body []byte) error {
		resp, err := client.Post(target, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("daemon returned %s", resp.Status)
		}
		return nil
	}

	return c
}

// Connect opens the persistent stream. Safe to call while already
// connecting or open (no-op). An external Connect always resets the
// reconnect budget.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting || c.state == StateOpen {
		return
	}
	c.stopRetryLocked()
	c.attempts = 0
	c.startDialLocked()
}

// startDialLocked transitions to Connecting and dials asynchronously.
func (c *Channel) startDialLocked() {
	c.state = StateConnecting
	gen := c.gen
	url := c.cfg.StreamURL
	go func() {
		conn, err := c.dial(url)
		c.dialDone(gen, conn, err)
	}()
}

func (c *Channel) dialDone(gen uint64, conn streamConn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateConnecting {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		log.Warn("stream dial failed", "url", c.cfg.StreamURL, "err", err)
		c.streamFailedLocked()
		return
	}
	c.conn = conn
	c.state = StateOpen
	log.Info("stream open", "url", c.cfg.StreamURL)
	c.writeCh = make(chan streamWrite, writeQueueSize)
	c.writeStop = make(chan struct{})
	go c.writeLoop(gen, conn, c.writeCh, c.writeStop)
	go c.readLoop(gen, conn)
}

// writeLoop is the only writer on the stream. A failed write tears the
// stream down; commands still queued at teardown complete without being
// sent, superseded by the control loop's next tick.
func (c *Channel) writeLoop(gen uint64, conn streamConn, ch chan streamWrite, stop chan struct{}) {
	for {
		select {
		case w := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(w.msg)
			w.done()
			if err != nil {
				log.Warn("stream write failed", "err", err)
				c.streamClosed(gen, conn, err)
			}
		case <-stop:
			for {
				select {
				case w := <-ch:
					w.done()
				default:
					return
				}
			}
		}
	}
}

// readLoop drains acknowledgements and detects disconnection. Error or
// malformed acks are logged only; they never change connection state.
func (c *Channel) readLoop(gen uint64, conn streamConn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.streamClosed(gen, conn, err)
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("malformed stream message", "err", err)
			continue
		}
		if msg.Type == protocol.TypeAck {
			var ack protocol.AckData
			if err := msg.ParseData(&ack); err != nil {
				log.Warn("malformed ack", "err", err)
				continue
			}
			if !ack.OK {
				log.Warn("robot rejected command", "err", ack.Error)
			}
		}
	}
}

// streamClosed handles a non-graceful close of the stream. The conn
// identity check keeps a late failure on an already replaced connection
// from tearing down its successor.
func (c *Channel) streamClosed(gen uint64, conn streamConn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateOpen || c.conn != conn {
		return
	}
	log.Warn("stream closed", "err", err)
	c.closeConnLocked()
	c.streamFailedLocked()
}

// closeConnLocked tears down the live connection and its writer.
func (c *Channel) closeConnLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.writeStop != nil {
		close(c.writeStop)
		c.writeStop = nil
	}
	c.writeCh = nil
}

// streamFailedLocked transitions to Closed and schedules a bounded
// reconnect. The budget is consumed by every abnormal close, including
// ones a successful reconnect sat between; once MaxReconnects is spent
// the channel stays Closed until an external Connect.
func (c *Channel) streamFailedLocked() {
	c.state = StateClosed
	c.attempts++
	if c.attempts > c.cfg.MaxReconnects {
		log.Warn("reconnect attempts exhausted", "attempts", c.attempts-1)
		return
	}
	log.Info("scheduling reconnect", "attempt", c.attempts, "delay", c.cfg.ReconnectDelay)
	gen := c.gen
	c.retryTimer = c.schedule(c.cfg.ReconnectDelay, func() { c.retry(gen) })
}

func (c *Channel) retry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateClosed {
		return
	}
	c.retryTimer = nil
	c.startDialLocked()
}

// Disconnect tears the stream down gracefully. No reconnection follows.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.stopRetryLocked()
	c.closeConnLocked()
	c.state = StateDisconnected
	c.attempts = 0
}

func (c *Channel) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// Send delivers one command: queued for the stream writer if Open,
// otherwise through the one-shot fallback request. Never blocks the
// caller; done is called exactly once when the attempt finishes and
// delivery failures are absorbed here.
func (c *Channel) Send(cmd pose.Command, done func()) {
	c.mu.Lock()
	if c.state == StateOpen && c.writeCh != nil {
		select {
		case c.writeCh <- streamWrite{msg: protocol.NewTarget(cmd.Pose), done: done}:
			c.mu.Unlock()
			return
		default:
		}
		c.mu.Unlock()
		// Writer stalled and the queue is full: the command would be
		// stale by the time it drained, drop it.
		log.Warn("stream write queue full, dropping command")
		done()
		return
	}
	c.mu.Unlock()

	go func() {
		defer done()
		body, err := json.Marshal(cmd.Pose)
		if err != nil {
			log.Error("marshal command failed", "err", err)
			return
		}
		if err := c.post(body); err != nil {
			log.Warn("fallback send failed", "err", err)
		}
	}()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the persistent stream is open.
func (c *Channel) IsConnected() bool {
	return c.State() == StateOpen
}

// Attempts returns the reconnect budget consumed since the last
// external Connect.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}
