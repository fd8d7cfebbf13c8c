package scheduler

import "sync"

// Handle identifies a pending refresh request.
type Handle uint64

// Clock schedules one-shot callbacks on the next display refresh.
type Clock interface {
	Request(fn func()) Handle
	Cancel(h Handle)
}

// FrameClock is a Clock driven by explicit refresh signals. The host loop
// calls Fire once per display refresh; tests call it by hand.
type FrameClock struct {
	mu      sync.Mutex
	next    Handle
	pending map[Handle]func()
	order   []Handle
}

// NewFrameClock returns an idle clock.
func NewFrameClock() *FrameClock {
	return &FrameClock{pending: make(map[Handle]func())}
}

// Request queues fn for the next Fire.
func (c *FrameClock) Request(fn func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	h := c.next
	c.pending[h] = fn
	c.order = append(c.order, h)
	return h
}

// Cancel drops a pending request. Unknown handles are ignored.
func (c *FrameClock) Cancel(h Handle) {
	c.mu.Lock()
	delete(c.pending, h)
	c.mu.Unlock()
}

// Fire runs every callback requested before the call, in request order.
// Callbacks requested while firing wait for the next refresh.
// It returns the number of callbacks run.
func (c *FrameClock) Fire() int {
	c.mu.Lock()
	order := c.order
	c.order = nil
	c.mu.Unlock()

	n := 0
	for _, h := range order {
		c.mu.Lock()
		fn, ok := c.pending[h]
		delete(c.pending, h)
		c.mu.Unlock()
		if !ok {
			continue
		}
		fn()
		n++
	}
	return n
}

// Pending reports how many callbacks wait for the next Fire.
func (c *FrameClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
