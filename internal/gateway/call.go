package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Call is the asynchronous result handle for one request. It settles
// exactly once: either with the response data or with an error (timeout,
// server rejection, shutdown).
type Call struct {
	ID     string
	Action string

	params    json.RawMessage
	createdAt time.Time

	once sync.Once
	done chan struct{}
	data json.RawMessage
	err  error

	timer *time.Timer // deadline timer; owned by the client, nil until transmitted
}

func newCall(action string, params json.RawMessage) *Call {
	return &Call{
		ID:        NewRequestID(),
		Action:    action,
		params:    params,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// settle resolves or rejects the call. Safe to invoke from multiple paths;
// only the first wins.
func (c *Call) settle(data json.RawMessage, err error) {
	c.once.Do(func() {
		c.data = data
		c.err = err
		close(c.done)
	})
}

// Done is closed once the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome. Before Done is closed both values are nil.
func (c *Call) Result() (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.data, c.err
	default:
		return nil, nil
	}
}

// Wait blocks until the call settles or ctx is done.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.data, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Decode waits for the call and unmarshals its data into v.
func (c *Call) Decode(ctx context.Context, v any) error {
	data, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	if v == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
