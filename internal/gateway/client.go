package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketwire/marketwire/internal/pubsub"
)

// Client maintains one logical connection to the gateway. Requests invoked
// while disconnected are queued and drained FIFO once the connection is
// re-established; unsolicited server pushes fan out through the event bus.
type Client struct {
	cfg    Config
	tr     Transport
	logger *slog.Logger
	bus    *pubsub.Bus

	mu         sync.Mutex
	st         state
	attempts   int           // consecutive failed dials since the last successful open
	delay      time.Duration // next reconnect delay
	retryTimer *time.Timer
	pending    map[string]*Call
	box        outbox
	closed     bool

	done chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTransport replaces the default WebSocket transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.tr = t }
}

// New creates a Client. No I/O happens until Connect or the first Invoke.
func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	c := &Client{
		cfg:     cfg,
		logger:  slog.Default().With("component", "gateway"),
		pending: make(map[string]*Call),
		delay:   cfg.BackoffFloor,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = pubsub.NewBus(pubsub.WithLogger(c.logger))
	}
	if c.tr == nil {
		c.tr = NewWSTransport(cfg.URL, cfg.ClientID, c.logger)
	}
	c.tr.Bind(TransportHooks{
		OnFrame: c.handleFrame,
		OnClose: c.handleTransportClose,
	})

	if cfg.PingInterval > 0 {
		go c.keepalive()
	}
	return c
}

// Connect starts a connection attempt. A no-op without a token (absence of
// credentials is "not yet applicable", not an error) and while an attempt
// is already underway. Called against a permanently failed client it resets
// the attempt counter and restarts the cycle.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.cfg.Token == "" {
		c.mu.Unlock()
		return
	}
	switch c.st {
	case stateConnecting, stateConnected, stateReconnectWait:
		c.mu.Unlock()
		return
	}
	c.attempts = 0
	c.delay = c.cfg.BackoffFloor
	c.st = stateConnecting
	c.mu.Unlock()

	go c.dial()
}

// SetToken replaces the auth token used by future connection attempts.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.cfg.Token = token
	c.mu.Unlock()
}

// Status reports the externally observable connection state. Reconnect
// wait surfaces as connecting; permanent failure as disconnected.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.st {
	case stateConnected:
		return StatusConnected
	case stateConnecting, stateReconnectWait:
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}

// Subscribe registers fn for a named server push or lifecycle event.
func (c *Client) Subscribe(event string, fn func(data json.RawMessage)) pubsub.Subscription {
	return c.bus.Subscribe(event, func(data any) {
		raw, _ := data.(json.RawMessage)
		fn(raw)
	})
}

// Invoke sends a request, or queues it when no connection is available
// (additionally kicking off a connection attempt). The returned Call
// settles exactly once. Never blocks.
func (c *Client) Invoke(action string, params any) *Call {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			call := newCall(action, nil)
			call.settle(nil, fmt.Errorf("marshal params: %w", err))
			return call
		}
		raw = b
	}

	call := newCall(action, raw)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		call.settle(nil, ErrShutdown)
		return call
	}

	if c.st == stateConnected {
		c.registerLocked(call)
		c.mu.Unlock()
		if err := c.send(call); err != nil {
			c.logger.Warn("transmit failed, requeueing", "action", action, "error", err)
			c.requeue(call)
		}
		return call
	}

	c.box.enqueue(call)
	kick := c.st == stateDisconnected || c.st == stateFailed
	c.mu.Unlock()

	if kick {
		c.Connect()
	}
	return call
}

// Close tears down the connection and settles all pending and queued
// requests with ErrShutdown. Terminal: no reconnection follows. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.st = stateDisconnected
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}

	calls := make([]*Call, 0, len(c.pending)+c.box.len())
	for id, call := range c.pending {
		delete(c.pending, id)
		if call.timer != nil {
			call.timer.Stop()
		}
		calls = append(calls, call)
	}
	calls = append(calls, c.box.drain()...)
	c.mu.Unlock()

	close(c.done)
	err := c.tr.Close()

	for _, call := range calls {
		call.settle(nil, ErrShutdown)
	}

	c.bus.Publish(EventDisconnected, json.RawMessage(nil))
	c.bus.Close()
	return err
}

// --- Supervisor internals ---

func (c *Client) dial() {
	c.mu.Lock()
	if c.closed || c.st != stateConnecting {
		c.mu.Unlock()
		return
	}
	token := c.cfg.Token
	timeout := c.cfg.DialTimeout
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	err := c.tr.Open(ctx, token)
	cancel()

	if err != nil {
		c.dialFailed(err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.tr.Close()
		return
	}
	if c.st != stateConnecting {
		// The connection died before we got here and a retry is already
		// scheduled; don't overwrite that transition.
		c.mu.Unlock()
		return
	}
	c.st = stateConnected
	c.attempts = 0
	c.delay = c.cfg.BackoffFloor
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.cfg.URL)
	c.bus.Publish(EventConnected, json.RawMessage(nil))
	c.drainOutbox()
}

func (c *Client) dialFailed(err error) {
	if errors.Is(err, ErrAuthRejected) {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.st = stateFailed
		c.mu.Unlock()

		c.logger.Error("authentication rejected", "error", err)
		data, _ := json.Marshal(authErrorPayload{Reason: err.Error()})
		c.bus.Publish(EventAuthError, json.RawMessage(data))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	terminal := c.scheduleRetryLocked()
	c.mu.Unlock()

	c.logger.Warn("connect failed", "error", err, "attempt", attempt)
	if terminal > 0 {
		c.publishConnectionLost(terminal)
	}
}

// handleTransportClose fires when an established connection dies. A close
// can also race the tail end of a successful dial, so the connecting state
// is handled too.
func (c *Client) handleTransportClose(err error) {
	c.mu.Lock()
	if c.closed || (c.st != stateConnected && c.st != stateConnecting) {
		c.mu.Unlock()
		return
	}
	terminal := c.scheduleRetryLocked()
	c.mu.Unlock()

	c.logger.Warn("connection lost", "error", err)
	if terminal > 0 {
		c.publishConnectionLost(terminal)
	}
}

// scheduleRetryLocked arms the single-shot reconnect timer, doubling the
// delay up to the cap. Returns the attempt count when the retry budget is
// exhausted instead, having moved to the failed state; the caller publishes
// the terminal event outside the lock.
func (c *Client) scheduleRetryLocked() (terminal int) {
	if c.attempts >= c.cfg.MaxAttempts {
		c.st = stateFailed
		return c.attempts
	}

	d := c.delay
	c.delay = min(c.delay*2, c.cfg.BackoffCap)
	if c.cfg.Jitter {
		d = d - d/4 + time.Duration(rand.Int63n(int64(d)/2+1))
	}
	c.st = stateReconnectWait
	c.retryTimer = time.AfterFunc(d, c.redial)
	return 0
}

func (c *Client) redial() {
	c.mu.Lock()
	if c.closed || c.st != stateReconnectWait {
		c.mu.Unlock()
		return
	}
	c.st = stateConnecting
	c.mu.Unlock()
	c.dial()
}

func (c *Client) publishConnectionLost(attempts int) {
	c.logger.Error("giving up reconnecting", "attempts", attempts)
	data, _ := json.Marshal(connectionLostPayload{Attempts: attempts})
	c.bus.Publish(EventConnectionLost, json.RawMessage(data))
}

// --- Correlator internals ---

// registerLocked moves a call into the pending table and starts its
// deadline timer. Caller holds c.mu.
func (c *Client) registerLocked(call *Call) {
	c.pending[call.ID] = call
	timeout := c.cfg.RequestTimeout
	call.timer = time.AfterFunc(timeout, func() { c.expire(call.ID, timeout) })
}

func (c *Client) send(call *Call) error {
	payload, err := json.Marshal(requestPayload{
		ID:     call.ID,
		Action: call.Action,
		Params: call.params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.tr.Send(&Frame{
		ProtoVersion: ProtoVersion,
		FrameType:    FrameRequest,
		FrameID:      NewFrameID(),
		Payload:      payload,
	})
}

// requeue returns a call whose transmit failed synchronously to the head
// of the outbox, so it keeps its place in line.
func (c *Client) requeue(call *Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, still := c.pending[call.ID]; !still {
		return // settled or shut down in the meantime
	}
	delete(c.pending, call.ID)
	if call.timer != nil {
		call.timer.Stop()
	}
	c.box.requeueFront(call)
}

func (c *Client) expire(id string, timeout time.Duration) {
	c.mu.Lock()
	call, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)
	c.mu.Unlock()

	call.settle(nil, fmt.Errorf("%w: %s unanswered after %s", ErrTimeout, call.Action, timeout))
}

// drainOutbox transmits queued requests head-first until the outbox is
// empty or the connection drops again.
func (c *Client) drainOutbox() {
	for {
		c.mu.Lock()
		if c.closed || c.st != stateConnected {
			c.mu.Unlock()
			return
		}
		call := c.box.pop()
		if call == nil {
			c.mu.Unlock()
			return
		}
		c.registerLocked(call)
		c.mu.Unlock()

		if err := c.send(call); err != nil {
			c.logger.Warn("drain transmit failed", "action", call.Action, "error", err)
			c.requeue(call)
			return
		}
	}
}

// --- Inbound frames ---

func (c *Client) handleFrame(f *Frame) {
	switch f.FrameType {
	case FrameResponse:
		c.handleResponse(f)

	case FrameEvent:
		var evt eventPayload
		if err := json.Unmarshal(f.Payload, &evt); err != nil {
			c.logger.Error("unmarshal event", "error", err)
			return
		}
		c.bus.Publish(evt.Event, evt.Data)

	case FramePing:
		// Server keepalive, nothing to answer.

	default:
		c.logger.Debug("unhandled frame type", "type", f.FrameType)
	}
}

func (c *Client) handleResponse(f *Frame) {
	var resp responsePayload
	if err := json.Unmarshal(f.Payload, &resp); err != nil {
		c.logger.Error("unmarshal response", "error", err)
		return
	}

	c.mu.Lock()
	call, ok := c.pending[resp.ID]
	if !ok {
		c.mu.Unlock()
		// Late arrival after timeout, or a frame for someone else's epoch.
		c.logger.Debug("response for unknown id", "id", resp.ID)
		return
	}
	// Remove before settling so a racing timeout finds nothing.
	delete(c.pending, resp.ID)
	if call.timer != nil {
		call.timer.Stop()
	}
	c.mu.Unlock()

	if resp.Success {
		call.settle(resp.Data, nil)
		return
	}
	msg := resp.Error
	if msg == "" {
		msg = "unknown error"
	}
	call.settle(nil, &ServerError{Message: msg})
}

// --- Keepalive ---

func (c *Client) keepalive() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.Status() != StatusConnected {
				continue
			}
			if err := c.tr.Send(&Frame{
				ProtoVersion: ProtoVersion,
				FrameType:    FramePing,
				FrameID:      NewFrameID(),
			}); err != nil {
				c.logger.Debug("keepalive send", "error", err)
			}
		}
	}
}
