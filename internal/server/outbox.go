package server

import "sync"

// Outbox is the bounded outbound queue of one peer. Any number of
// broadcasters may Offer into it; exactly one writer loop drains C.
type Outbox struct {
	mu     sync.Mutex
	closed bool
	ch     chan Message
}

// NewOutbox creates an outbox holding at most capacity pending messages.
func NewOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Outbox{ch: make(chan Message, capacity)}
}

// Offer enqueues msg without blocking. It returns false when the outbox is
// full or already closed.
func (o *Outbox) Offer(msg Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	select {
	case o.ch <- msg:
		return true
	default:
		return false
	}
}

// Close closes the queue. Messages already queued stay readable from C.
// Calling Close more than once is safe.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}

// C returns the consumer end of the queue.
func (o *Outbox) C() <-chan Message {
	return o.ch
}

// Len reports the number of pending messages.
func (o *Outbox) Len() int {
	return len(o.ch)
}

// Cap reports the capacity of the queue.
func (o *Outbox) Cap() int {
	return cap(o.ch)
}
