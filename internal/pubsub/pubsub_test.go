package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var order []int
	bus.Subscribe("tick", func(any) { order = append(order, 1) })
	bus.Subscribe("tick", func(any) { order = append(order, 2) })
	bus.Subscribe("tick", func(any) { order = append(order, 3) })

	bus.Publish("tick", nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDuplicateHandlerDeliveredTwice(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	count := 0
	fn := func(any) { count++ }
	bus.Subscribe("tick", fn)
	bus.Subscribe("tick", fn)

	bus.Publish("tick", nil)

	assert.Equal(t, 2, count)
}

func TestUnsubscribeRemovesExactRegistration(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	count := 0
	fn := func(any) { count++ }
	first := bus.Subscribe("tick", fn)
	bus.Subscribe("tick", fn)

	first.Unsubscribe()
	bus.Publish("tick", nil)

	assert.Equal(t, 1, count, "only the second registration should remain")

	// Unsubscribe is idempotent.
	first.Unsubscribe()
	bus.Publish("tick", nil)
	assert.Equal(t, 2, count)
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	delivered := false
	bus.Subscribe("tick", func(any) { panic("boom") })
	bus.Subscribe("tick", func(any) { delivered = true })

	require.NotPanics(t, func() { bus.Publish("tick", nil) })
	assert.True(t, delivered, "subscriber after the panicking one must still run")
}

func TestSubscriberCanUnsubscribeItself(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	count := 0
	var sub Subscription
	sub = bus.Subscribe("tick", func(any) {
		count++
		sub.Unsubscribe()
	})

	bus.Publish("tick", nil)
	bus.Publish("tick", nil)

	assert.Equal(t, 1, count)
}

func TestPublishPayloadReachesSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got any
	bus.Subscribe("balance_changed", func(data any) { got = data })
	bus.Publish("balance_changed", "payload")

	assert.Equal(t, "payload", got)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Subscribe("tick", func(any) { count++ })
	bus.Close()
	bus.Publish("tick", nil)

	assert.Zero(t, count)

	// Subscribe after close is inert too.
	sub := bus.Subscribe("tick", func(any) { count++ })
	sub.Unsubscribe()
	assert.Zero(t, count)
}

func TestPublishToUnknownEventIsNoop(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	require.NotPanics(t, func() { bus.Publish("nobody-listens", 42) })
}
