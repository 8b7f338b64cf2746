package gateway

import (
	"encoding/json"
	"time"
)

// Config holds connection parameters and retry policy for the gateway.
// Zero-value fields fall back to the documented defaults.
type Config struct {
	URL      string // WebSocket URL, e.g. "wss://gw.marketwire.io"
	Token    string // auth token presented on CONNECT
	ClientID string // optional client instance identifier; generated if empty

	RequestTimeout time.Duration // per-request deadline (default 30s)
	DialTimeout    time.Duration // per-dial deadline (default 10s)
	BackoffFloor   time.Duration // first reconnect delay (default 1s)
	BackoffCap     time.Duration // reconnect delay ceiling (default 30s)
	MaxAttempts    int           // consecutive failed dials before giving up (default 5)
	PingInterval   time.Duration // keepalive interval; 0 disables
	Jitter         bool          // randomize reconnect delays by ±25%
}

// Default policy values. Policy, not protocol: all overridable via Config.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultBackoffFloor   = 1 * time.Second
	DefaultBackoffCap     = 30 * time.Second
	DefaultMaxAttempts    = 5
)

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.BackoffFloor <= 0 {
		c.BackoffFloor = DefaultBackoffFloor
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Status is the externally observable connection state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// state is the internal supervisor state. Mutated only under Client.mu.
type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
	stateReconnectWait
	stateFailed
)

// Lifecycle event names published on the client's event bus alongside
// server pushes.
const (
	EventConnected      = "connected"
	EventDisconnected   = "disconnected"
	EventConnectionLost = "connection_lost"
	EventAuthError      = "auth_error"
)

// Server push event names from the gateway catalogue.
const (
	EventPriceTick      = "price_tick"
	EventBalanceChanged = "balance_changed"
	EventAdminNotice    = "admin_notice"
)

// --- Wire payload types (JSON-encoded frame payloads) ---

// connectPayload is the CONNECT frame payload.
type connectPayload struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id,omitempty"`
}

// authOKPayload is the AUTH_OK frame payload.
type authOKPayload struct {
	SessionID string `json:"session_id,omitempty"`
}

// authFailPayload is the AUTH_FAIL frame payload.
type authFailPayload struct {
	Reason string `json:"reason"`
	Code   uint32 `json:"code"`
}

// requestPayload is the REQUEST frame payload.
type requestPayload struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// responsePayload is the RESPONSE frame payload.
type responsePayload struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// eventPayload is the EVENT (server push) frame payload.
type eventPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// connectionLostPayload is the data attached to a connection_lost event.
type connectionLostPayload struct {
	Attempts int `json:"attempts"`
}

// authErrorPayload is the data attached to an auth_error event.
type authErrorPayload struct {
	Reason string `json:"reason"`
}
