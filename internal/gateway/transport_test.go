package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// mockGateway is a test WebSocket server that speaks the marketwire binary
// protocol.
type mockGateway struct {
	server  *httptest.Server
	conns   []net.Conn
	connCh  chan net.Conn
	mu      sync.Mutex
	authOK  bool
	onFrame func(net.Conn, *Frame) // optional per-test frame handler
}

func newMockGateway() *mockGateway {
	gw := &mockGateway{
		connCh: make(chan net.Conn, 10),
		authOK: true,
	}

	gw.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}

		gw.mu.Lock()
		gw.conns = append(gw.conns, conn)
		authOK := gw.authOK
		gw.mu.Unlock()

		// Read CONNECT frame
		data, err := wsutil.ReadClientBinary(conn)
		if err != nil {
			conn.Close()
			return
		}

		connectFrame, err := DecodeFrameFromBytes(data)
		if err != nil || connectFrame.FrameType != FrameConnect {
			conn.Close()
			return
		}

		// Send auth response
		var respFrame *Frame
		if authOK {
			payload, _ := json.Marshal(authOKPayload{SessionID: "sess-123"})
			respFrame = &Frame{
				ProtoVersion: ProtoVersion,
				FrameType:    FrameAuthOK,
				FrameID:      NewFrameID(),
				Payload:      payload,
			}
		} else {
			payload, _ := json.Marshal(authFailPayload{Reason: "invalid token", Code: 401})
			respFrame = &Frame{
				ProtoVersion: ProtoVersion,
				FrameType:    FrameAuthFail,
				FrameID:      NewFrameID(),
				Payload:      payload,
			}
		}

		encoded, _ := EncodeFrame(respFrame)
		wsutil.WriteServerBinary(conn, encoded)

		if !authOK {
			conn.Close()
			return
		}

		gw.connCh <- conn

		// Read loop for test assertions
		for {
			data, err := wsutil.ReadClientBinary(conn)
			if err != nil {
				return
			}
			f, err := DecodeFrameFromBytes(data)
			if err != nil {
				continue
			}
			gw.mu.Lock()
			onFrame := gw.onFrame
			gw.mu.Unlock()
			if onFrame != nil {
				onFrame(conn, f)
			}
		}
	}))

	return gw
}

func (gw *mockGateway) url() string {
	return "ws" + gw.server.URL[4:] // http:// → ws://
}

func (gw *mockGateway) close() {
	gw.mu.Lock()
	for _, c := range gw.conns {
		c.Close()
	}
	gw.mu.Unlock()
	gw.server.Close()
}

func (gw *mockGateway) sendToClient(conn net.Conn, f *Frame) error {
	encoded, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	return wsutil.WriteServerBinary(conn, encoded)
}

func TestWSTransportAuth(t *testing.T) {
	gw := newMockGateway()
	defer gw.close()

	tr := NewWSTransport(gw.url(), "client-1", nil)
	tr.Bind(TransportHooks{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Open(ctx, "tok-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()
}

func TestWSTransportAuthRejected(t *testing.T) {
	gw := newMockGateway()
	gw.authOK = false
	defer gw.close()

	tr := NewWSTransport(gw.url(), "client-1", nil)
	tr.Bind(TransportHooks{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := tr.Open(ctx, "bad-token")
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("err = %v, want ErrAuthRejected", err)
	}
}

func TestWSTransportCloseSilencesReadLoop(t *testing.T) {
	gw := newMockGateway()
	defer gw.close()

	closed := make(chan error, 1)
	tr := NewWSTransport(gw.url(), "client-1", nil)
	tr.Bind(TransportHooks{
		OnClose: func(err error) { closed <- err },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Open(ctx, "tok-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	<-gw.connCh

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-closed:
		t.Fatalf("OnClose fired after explicit Close: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientEndToEnd(t *testing.T) {
	gw := newMockGateway()
	defer gw.close()

	// Echo a canned balance for every request.
	gw.onFrame = func(conn net.Conn, f *Frame) {
		if f.FrameType != FrameRequest {
			return
		}
		var req requestPayload
		if err := json.Unmarshal(f.Payload, &req); err != nil {
			return
		}
		payload, _ := json.Marshal(responsePayload{
			ID:      req.ID,
			Success: true,
			Data:    json.RawMessage(`{"currency":"USD","available":250.5,"hold":0}`),
		})
		gw.sendToClient(conn, &Frame{
			ProtoVersion: ProtoVersion,
			FrameType:    FrameResponse,
			FrameID:      NewFrameID(),
			Payload:      payload,
		})
	}

	client := New(Config{
		URL:            gw.url(),
		Token:          "tok-1",
		RequestTimeout: 5 * time.Second,
		BackoffFloor:   10 * time.Millisecond,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Invoke before any Connect: queued, connected, drained, answered.
	bal, err := client.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Currency != "USD" || bal.Available != 250.5 {
		t.Errorf("balance = %+v", bal)
	}
}

func TestClientReceivesPushOverWire(t *testing.T) {
	gw := newMockGateway()
	defer gw.close()

	client := New(Config{
		URL:          gw.url(),
		Token:        "tok-1",
		BackoffFloor: 10 * time.Millisecond,
	})
	defer client.Close()

	got := make(chan json.RawMessage, 1)
	client.Subscribe(EventBalanceChanged, func(data json.RawMessage) { got <- data })

	client.Connect()

	var conn net.Conn
	select {
	case conn = <-gw.connCh:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}

	payload, _ := json.Marshal(eventPayload{
		Event: EventBalanceChanged,
		Data:  json.RawMessage(`{"currency":"USD","available":99}`),
	})
	gw.sendToClient(conn, &Frame{
		ProtoVersion: ProtoVersion,
		FrameType:    FrameEvent,
		FrameID:      NewFrameID(),
		Payload:      payload,
	})

	select {
	case data := <-got:
		var b Balance
		if err := json.Unmarshal(data, &b); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if b.Available != 99 {
			t.Errorf("available = %v, want 99", b.Available)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("push never delivered")
	}
}

func TestClientReconnectsOverWire(t *testing.T) {
	gw := newMockGateway()
	defer gw.close()

	client := New(Config{
		URL:          gw.url(),
		Token:        "tok-1",
		BackoffFloor: 10 * time.Millisecond,
		BackoffCap:   50 * time.Millisecond,
		MaxAttempts:  10,
	})
	defer client.Close()

	client.Connect()

	var first net.Conn
	select {
	case first = <-gw.connCh:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}

	// Kill the connection server-side; the client should come back.
	first.Close()

	select {
	case <-gw.connCh:
	case <-time.After(5 * time.Second):
		t.Fatal("client never reconnected")
	}

	deadline := time.Now().Add(5 * time.Second)
	for client.Status() != StatusConnected {
		if time.Now().After(deadline) {
			t.Fatal("status never returned to connected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
