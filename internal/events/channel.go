// Package events carries engine events from any number of producers to a
// single consumer.
package events

import (
	"sync"

	"torrentsession/internal/domain"
)

// Channel is an unbounded, ordered queue. Publish never blocks; events wait in
// memory until the consumer reads them from C.
type Channel struct {
	mu     sync.Mutex
	queue  []domain.Event
	seq    uint64
	closed bool

	notify chan struct{}
	out    chan domain.Event
}

func NewChannel() *Channel {
	c := &Channel{
		notify: make(chan struct{}, 1),
		out:    make(chan domain.Event),
	}
	go c.pump()
	return c
}

// Publish stamps ev with the next sequence number and enqueues it. It reports
// false when the channel is already closed and the event was dropped.
func (c *Channel) Publish(ev domain.Event) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.seq++
	ev.Seq = c.seq
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

// C delivers events in publish order. It is closed after Close once every
// queued event has been delivered.
func (c *Channel) C() <-chan domain.Event {
	return c.out
}

// Close stops accepting events. Events already queued are still delivered.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Len is the number of events queued and not yet handed to the consumer.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Channel) pump() {
	defer close(c.out)
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			<-c.notify
			continue
		}
		ev := c.queue[0]
		c.queue[0] = domain.Event{}
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.out <- ev
	}
}
