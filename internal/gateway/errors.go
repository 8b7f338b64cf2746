package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrShutdown settles all pending and queued requests when the client
	// is closed.
	ErrShutdown = errors.New("gateway: client closed")

	// ErrTimeout rejects a request whose deadline elapsed unanswered.
	ErrTimeout = errors.New("gateway: request timed out")

	// ErrAuthRejected marks an authentication failure. Retrying with the
	// same token is futile; the caller needs a fresh one.
	ErrAuthRejected = errors.New("gateway: authentication rejected")

	// ErrNotConnected is returned by a synchronous send against a channel
	// that is not ready.
	ErrNotConnected = errors.New("gateway: not connected")
)

// ServerError is a per-request rejection from the gateway
// (success:false response).
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gateway: server rejected request: %s", e.Message)
}
