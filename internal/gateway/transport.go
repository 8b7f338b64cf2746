package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// TransportHooks receives channel events. OnFrame is called for every
// inbound frame after authentication; OnClose fires once when an
// established connection dies for any reason other than an explicit Close.
type TransportHooks struct {
	OnFrame func(f *Frame)
	OnClose func(err error)
}

// Transport is the abstract duplex channel to the gateway. Open blocks
// until the connection is established and authenticated, or fails; an
// authentication rejection is reported as an error wrapping ErrAuthRejected.
type Transport interface {
	Bind(hooks TransportHooks)
	Open(ctx context.Context, token string) error
	Close() error
	Send(f *Frame) error
}

// wsTransport is the production Transport: a single WebSocket with a
// binary-framed protocol.
type wsTransport struct {
	url      string
	clientID string
	logger   *slog.Logger

	hooks TransportHooks

	mu      sync.Mutex
	conn    net.Conn
	gen     int // connection generation, silences stale read loops
	writeMu sync.Mutex
}

// NewWSTransport creates the WebSocket transport for the given gateway URL.
func NewWSTransport(url, clientID string, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &wsTransport{
		url:      url,
		clientID: clientID,
		logger:   logger.With("component", "ws-transport"),
	}
}

func (t *wsTransport) Bind(hooks TransportHooks) {
	t.hooks = hooks
}

// Open dials the gateway, sends a CONNECT frame carrying the token, and
// waits for AUTH_OK. On success a read loop is started for the lifetime of
// the connection.
func (t *wsTransport) Open(ctx context.Context, token string) error {
	conn, _, _, err := ws.Dial(ctx, t.url)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	cp, err := json.Marshal(connectPayload{Token: token, ClientID: t.clientID})
	if err != nil {
		conn.Close()
		return fmt.Errorf("marshal connect: %w", err)
	}

	encoded, err := EncodeFrame(&Frame{
		ProtoVersion: ProtoVersion,
		FrameType:    FrameConnect,
		FrameID:      NewFrameID(),
		Payload:      cp,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("encode connect: %w", err)
	}
	if err := wsutil.WriteClientBinary(conn, encoded); err != nil {
		conn.Close()
		return fmt.Errorf("write connect: %w", err)
	}

	// Read auth response under a deadline.
	if dl, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(dl)
	} else {
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	}

	data, err := wsutil.ReadServerBinary(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("read auth response: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	authFrame, err := DecodeFrameFromBytes(data)
	if err != nil {
		conn.Close()
		return fmt.Errorf("decode auth response: %w", err)
	}

	switch authFrame.FrameType {
	case FrameAuthOK:
		var ok authOKPayload
		if err := json.Unmarshal(authFrame.Payload, &ok); err != nil {
			conn.Close()
			return fmt.Errorf("unmarshal auth ok: %w", err)
		}
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
		}
		t.conn = conn
		t.gen++
		gen := t.gen
		t.mu.Unlock()
		t.logger.Info("authenticated", "session_id", ok.SessionID)
		go t.readLoop(conn, gen)
		return nil

	case FrameAuthFail:
		var fail authFailPayload
		json.Unmarshal(authFrame.Payload, &fail)
		conn.Close()
		return fmt.Errorf("%w: %s (code %d)", ErrAuthRejected, fail.Reason, fail.Code)

	default:
		conn.Close()
		return fmt.Errorf("unexpected frame type during auth: %d", authFrame.FrameType)
	}
}

// Close tears down the current connection. The read loop for that
// connection exits without firing OnClose.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.gen++ // invalidate the running read loop
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send writes a frame. Fire-and-forget: a nil return means the frame was
// handed to the socket, not that the server received it.
func (t *wsTransport) Send(f *Frame) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	encoded, err := EncodeFrame(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := wsutil.WriteClientBinary(conn, encoded); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (t *wsTransport) readLoop(conn net.Conn, gen int) {
	for {
		data, err := wsutil.ReadServerBinary(conn)
		if err != nil {
			t.mu.Lock()
			stale := t.gen != gen
			if !stale {
				t.conn = nil
			}
			t.mu.Unlock()

			if !stale && t.hooks.OnClose != nil {
				t.hooks.OnClose(err)
			}
			return
		}

		frame, err := DecodeFrameFromBytes(data)
		if err != nil {
			t.logger.Error("decode frame", "error", err)
			continue
		}

		if t.hooks.OnFrame != nil {
			t.hooks.OnFrame(frame)
		}
	}
}
