package gateway

// outbox buffers requests created while no connection is available.
// Strictly FIFO: callers that queued earlier are transmitted earlier once
// the connection comes back. Not safe for concurrent use; the client
// serializes access under its mutex.
type outbox struct {
	queue []*Call
}

func (o *outbox) enqueue(c *Call) {
	o.queue = append(o.queue, c)
}

// requeueFront puts a request back at the head after a transmit attempt
// failed synchronously, so it is not lost and keeps its place in line.
func (o *outbox) requeueFront(c *Call) {
	o.queue = append([]*Call{c}, o.queue...)
}

func (o *outbox) pop() *Call {
	if len(o.queue) == 0 {
		return nil
	}
	c := o.queue[0]
	o.queue[0] = nil
	o.queue = o.queue[1:]
	return c
}

func (o *outbox) len() int {
	return len(o.queue)
}

// drain empties the outbox and returns everything that was queued, in order.
func (o *outbox) drain() []*Call {
	q := o.queue
	o.queue = nil
	return q
}
