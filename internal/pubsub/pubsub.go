// Package pubsub is a small publish/subscribe registry mapping event names
// to ordered subscriber lists. Delivery is synchronous and in subscription
// order; a panicking subscriber never prevents delivery to the rest.
package pubsub

import (
	"log/slog"
	"sync"
)

// Handler receives the event payload.
type Handler func(data any)

type subscriber struct {
	id int64
	fn Handler
}

// Bus routes published events to subscribers by name.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]subscriber
	nextID int64
	closed bool
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets a structured logger for subscriber panics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates an empty Bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[string][]subscriber),
		logger: slog.Default().With("component", "pubsub"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription identifies one registration. Unsubscribe removes exactly
// this registration and no other, even when the same handler was
// registered twice.
type Subscription struct {
	bus   *Bus
	event string
	id    int64
}

// Unsubscribe removes the registration. Idempotent.
func (s Subscription) Unsubscribe() {
	if s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	list := s.bus.subs[s.event]
	for i, sub := range list {
		if sub.id == s.id {
			s.bus.subs[s.event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Subscribe appends fn to the subscriber list for event. No de-duplication:
// registering the same handler twice yields two deliveries.
func (b *Bus) Subscribe(event string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Subscription{}
	}
	b.nextID++
	b.subs[event] = append(b.subs[event], subscriber{id: b.nextID, fn: fn})
	return Subscription{bus: b, event: event, id: b.nextID}
}

// Publish delivers data to every subscriber of event, synchronously and in
// subscription order. Publishing to an event with no subscribers is a no-op,
// as is publishing after Close.
func (b *Bus) Publish(event string, data any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	// Snapshot so a handler can (un)subscribe without mutating the list
	// mid-delivery.
	list := make([]subscriber, len(b.subs[event]))
	copy(list, b.subs[event])
	b.mu.Unlock()

	for _, sub := range list {
		b.deliver(event, sub, data)
	}
}

func (b *Bus) deliver(event string, sub subscriber, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panic", "event", event, "panic", r)
		}
	}()
	sub.fn(data)
}

// Close drops all subscriptions and makes further Publish calls no-ops.
// Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]subscriber)
}
