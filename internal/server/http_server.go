// Package server constructs and runs the gateway HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// CreateServer creates an HTTP server for the gateway. Read and write timeouts
// only cover the upgrade request; hijacked WebSocket connections are not
// subject to them.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve runs the gateway on listener until ctx is cancelled, then closes the
// HTTP server and every WebSocket peer, waiting up to shutdownTimeout.
func (g *Gateway) Serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	httpServer := CreateServer(listener.Addr().String(), g.Routes())

	errChan := make(chan error, 1)
	go func() {
		g.log.Info("Accepting WebSocket peers", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("gateway server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errChan:
		if ok {
			return err
		}
	}

	return g.Shutdown(httpServer, shutdownTimeout)
}

// Shutdown stops httpServer without waiting for hijacked connections, closes
// every WebSocket peer, and waits up to timeout for their sessions to finish.
func (g *Gateway) Shutdown(httpServer *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		g.log.Error("Gateway shutdown error", "error", err)
		return err
	}

	closed := g.conns.closeAll()
	g.log.Info("Closed WebSocket peers", "count", closed)

	if err := g.conns.wait(timeout); err != nil {
		g.log.Warn("Gateway shutdown timeout reached, some sessions may still be running")
		return err
	}
	return nil
}
