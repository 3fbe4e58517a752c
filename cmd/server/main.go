package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/linechat/internal/server"
	"github.com/Tyrowin/linechat/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the relay, its listeners and background workers, and blocks until
// SIGINT or SIGTERM.
func run() error {
	// 1. Configuration & Logger
	config, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	config.Print(os.Stdout)

	// 2. Bind the chat endpoint; failing here is fatal
	listener, err := server.Listen(config.ListenAddr)
	if err != nil {
		return err
	}

	relay := server.NewRelay(config, log)
	acceptor := server.NewAcceptor(relay, config, log)

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Supervised workers
	sup := supervisor.NewSupervisor(log)
	sup.Add(
		&acceptorWorker{acceptor: acceptor, addr: config.ListenAddr, listener: listener},
		server.NewStatsReporter(relay.Registry(), config.StatsInterval, log),
	)
	if config.WebSocketAddr != "" {
		gateway := server.NewGateway(relay, config, log)
		sup.Add(&gatewayWorker{gateway: gateway, addr: config.WebSocketAddr, shutdownTimeout: config.ShutdownTimeout})
	}

	log.Info("Starting linechat relay", "addr", listener.Addr().String())
	sup.Run(ctx)

	// 5. Final Cleanup
	log.Info("Shutting down gracefully...")
	if err := acceptor.Shutdown(config.ShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}
