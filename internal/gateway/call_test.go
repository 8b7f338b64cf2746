package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallSettlesExactlyOnce(t *testing.T) {
	call := newCall("balance.get", nil)

	call.settle(json.RawMessage(`{"balance":1}`), nil)
	call.settle(nil, errors.New("too late"))

	data, err := call.Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":1}`, string(data))
}

func TestCallWaitHonorsContext(t *testing.T) {
	call := newCall("balance.get", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := call.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The call itself is untouched by the caller's context.
	data, err := call.Result()
	assert.Nil(t, data)
	assert.NoError(t, err)
}

func TestCallDecode(t *testing.T) {
	call := newCall("balance.get", nil)
	call.settle(json.RawMessage(`{"currency":"USD","available":5}`), nil)

	var b Balance
	require.NoError(t, call.Decode(context.Background(), &b))
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, 5.0, b.Available)
}

func TestCallDecodeError(t *testing.T) {
	call := newCall("balance.get", nil)
	call.settle(nil, ErrShutdown)

	var b Balance
	assert.ErrorIs(t, call.Decode(context.Background(), &b), ErrShutdown)
}

func TestCallResultBeforeSettlement(t *testing.T) {
	call := newCall("balance.get", nil)
	data, err := call.Result()
	assert.Nil(t, data)
	assert.NoError(t, err)

	select {
	case <-call.Done():
		t.Fatal("Done closed before settlement")
	default:
	}
}
