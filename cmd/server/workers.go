package main

import (
	"context"
	"net"
	"time"

	"github.com/Tyrowin/linechat/internal/server"
)

// acceptorWorker serves the TCP endpoint. The first run uses the listener
// bound at startup; a restart binds the address again.
type acceptorWorker struct {
	acceptor *server.Acceptor
	addr     string
	listener net.Listener
}

func (w *acceptorWorker) Run(ctx context.Context) error {
	listener := w.listener
	w.listener = nil
	if listener == nil {
		var err error
		if listener, err = server.Listen(w.addr); err != nil {
			return err
		}
	}
	return w.acceptor.Serve(ctx, listener)
}

// gatewayWorker serves the WebSocket gateway until ctx is done.
type gatewayWorker struct {
	gateway         *server.Gateway
	addr            string
	shutdownTimeout time.Duration
}

func (w *gatewayWorker) Run(ctx context.Context) error {
	listener, err := server.Listen(w.addr)
	if err != nil {
		return err
	}
	return w.gateway.Serve(ctx, listener, w.shutdownTimeout)
}
