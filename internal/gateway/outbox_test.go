package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutboxFIFO(t *testing.T) {
	var box outbox

	a := newCall("a", nil)
	b := newCall("b", nil)
	c := newCall("c", nil)
	box.enqueue(a)
	box.enqueue(b)
	box.enqueue(c)

	assert.Equal(t, 3, box.len())
	assert.Same(t, a, box.pop())
	assert.Same(t, b, box.pop())
	assert.Same(t, c, box.pop())
	assert.Nil(t, box.pop())
}

func TestOutboxRequeueFront(t *testing.T) {
	var box outbox

	a := newCall("a", nil)
	b := newCall("b", nil)
	box.enqueue(a)
	box.enqueue(b)

	// A failed transmit puts the head back where it was.
	head := box.pop()
	box.requeueFront(head)

	assert.Same(t, a, box.pop())
	assert.Same(t, b, box.pop())
}

func TestOutboxDrain(t *testing.T) {
	var box outbox

	a := newCall("a", nil)
	b := newCall("b", nil)
	box.enqueue(a)
	box.enqueue(b)

	drained := box.drain()
	assert.Equal(t, []*Call{a, b}, drained)
	assert.Zero(t, box.len())
	assert.Nil(t, box.pop())
}
