// Package server binds the TCP chat endpoint and spawns one session per
// accepted connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Acceptor accepts TCP connections and hands each one to the Relay.
type Acceptor struct {
	relay        *Relay
	maxLineLen   int
	writeTimeout time.Duration
	log          *slog.Logger
	conns        *connTracker

	mu       sync.Mutex
	listener net.Listener
}

// NewAcceptor creates an Acceptor feeding relay.
func NewAcceptor(relay *Relay, cfg *Config, log *slog.Logger) *Acceptor {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Acceptor{
		relay:        relay,
		maxLineLen:   cfg.MaxLineLength,
		writeTimeout: cfg.WriteTimeout,
		log:          log,
		conns:        newConnTracker(),
	}
}

// Listen binds the TCP endpoint. A bind failure is returned to the caller,
// which treats it as fatal.
func Listen(addr string) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return listener, nil
}

// Serve accepts connections on listener until ctx is cancelled or Shutdown is
// called. Each connection runs in its own goroutine. Accept errors are logged
// and retried with a capped back-off. Serve returns nil when ctx ends and
// ErrServerClosed after Shutdown.
func (a *Acceptor) Serve(ctx context.Context, listener net.Listener) error {
	if !a.setListener(listener) {
		_ = listener.Close()
		return ErrServerClosed
	}

	stop := context.AfterFunc(ctx, func() {
		_ = listener.Close()
	})
	defer stop()

	a.log.Info("Accepting chat connections", "addr", listener.Addr().String())

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if a.conns.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}

			backoff = nextBackoff(backoff)
			a.log.Error("Accept failed; retrying", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		if !a.conns.add(conn) {
			_ = conn.Close()
			continue
		}
		a.log.Debug("Accepted connection", "remote_addr", conn.RemoteAddr().String())

		go func() {
			defer a.conns.done(conn)
			a.relay.ServeConn(NewTCPLineConn(conn, a.maxLineLen, a.writeTimeout))
		}()
	}
}

// Shutdown closes the listener and every live connection, then waits up to
// timeout for their sessions to finish.
func (a *Acceptor) Shutdown(timeout time.Duration) error {
	closed := a.conns.closeAll()

	a.mu.Lock()
	listener := a.listener
	a.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}
	a.log.Info("Closed chat connections", "count", closed)

	if err := a.conns.wait(timeout); err != nil {
		a.log.Warn("Shutdown timeout reached, some sessions may still be running")
		return err
	}
	return nil
}

func (a *Acceptor) setListener(listener net.Listener) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns.isClosed() {
		return false
	}
	a.listener = listener
	return true
}

// nextBackoff doubles the previous delay, from 5ms up to 1s
func nextBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	return min(2*prev, time.Second)
}
