package server

import (
	"context"
	"io"
	"sync"
	"time"
)

// connTracker remembers live connections so they can be closed on shutdown.
type connTracker struct {
	mu     sync.Mutex
	closed bool
	conns  map[io.Closer]struct{}
	wg     sync.WaitGroup
}

func newConnTracker() *connTracker {
	return &connTracker{conns: make(map[io.Closer]struct{})}
}

// add tracks c. It returns false once closeAll has been called.
func (t *connTracker) add(c io.Closer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conns[c] = struct{}{}
	t.wg.Add(1)
	return true
}

// done forgets c once its session has finished.
func (t *connTracker) done(c io.Closer) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
	t.wg.Done()
}

func (t *connTracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// closeAll refuses further connections and closes the live ones. It returns
// how many were closed.
func (t *connTracker) closeAll() int {
	t.mu.Lock()
	t.closed = true
	conns := make([]io.Closer, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	// Close connections after releasing the lock
	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}

// wait blocks until every tracked session is done or timeout elapses.
func (t *connTracker) wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
