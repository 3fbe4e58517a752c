package server_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/linechat/internal/server"
	"github.com/Tyrowin/linechat/test/testhelpers"
)

// startRelay runs an Acceptor on a loopback port and returns its address.
func startRelay(t *testing.T, cfg *server.Config) (*server.Relay, *server.Acceptor, string) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	listener, err := server.Listen("127.0.0.1:0")
	require.NoError(t, err)

	relay := server.NewRelay(cfg, log)
	acceptor := server.NewAcceptor(relay, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- acceptor.Serve(ctx, listener) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-served)
		_ = acceptor.Shutdown(time.Second)
	})
	return relay, acceptor, listener.Addr().String()
}

func waitPeers(t *testing.T, relay *server.Relay, n int) {
	t.Helper()
	testhelpers.Eventually(t, func() bool { return relay.Registry().Len() == n }, "peer count never settled")
}

// TestAcceptor_AliceAndBob runs the reference two-peer exchange over real
// TCP connections.
func TestAcceptor_AliceAndBob(t *testing.T) {
	relay, _, addr := startRelay(t, server.NewConfig())

	alice := testhelpers.DialTCP(t, addr).Join(server.UsernamePrompt, "alice")
	waitPeers(t, relay, 1)
	bob := testhelpers.DialTCP(t, addr).Join(server.UsernamePrompt, "bob")

	alice.ExpectLine("[bob joined the chat]")

	bob.Send("hi")
	alice.ExpectLine("bob: hi")
	bob.ExpectNoLine(100 * time.Millisecond)

	require.NoError(t, bob.Close())
	alice.ExpectLine("[bob leave the chat]")
	waitPeers(t, relay, 1)
}

func TestAcceptor_CRLFAndEmptyLines(t *testing.T) {
	relay, _, addr := startRelay(t, server.NewConfig())

	alice := testhelpers.DialTCP(t, addr).Join(server.UsernamePrompt, "alice")
	waitPeers(t, relay, 1)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.Write([]byte("bob\r\n\r\nhello\r\n"))
	require.NoError(t, err)

	alice.ExpectLine("[bob joined the chat]")
	alice.ExpectLine("bob: ")
	alice.ExpectLine("bob: hello")
}

func TestAcceptor_ManyPeersReceiveEveryLineOnce(t *testing.T) {
	relay, _, addr := startRelay(t, server.NewConfig())

	const n = 5
	peers := make([]*testhelpers.Peer, 0, n)
	names := []string{"p0", "p1", "p2", "p3", "p4"}
	for i, name := range names {
		p := testhelpers.DialTCP(t, addr).Join(server.UsernamePrompt, name)
		waitPeers(t, relay, i+1)
		for _, earlier := range peers {
			earlier.ExpectLine("[" + name + " joined the chat]")
		}
		peers = append(peers, p)
	}

	for i, p := range peers {
		p.Send("from " + names[i])
	}

	for i, p := range peers {
		got := map[string]int{}
		for j := 0; j < n-1; j++ {
			got[p.ReadLine()]++
		}
		for j, name := range names {
			if j == i {
				continue
			}
			require.Equal(t, 1, got[name+": from "+name], "peer %s", names[i])
		}
		p.ExpectNoLine(50 * time.Millisecond)
	}
}

func TestAcceptor_LineTooLongDisconnects(t *testing.T) {
	cfg := server.NewConfig()
	cfg.MaxLineLength = 16
	relay, _, addr := startRelay(t, cfg)

	alice := testhelpers.DialTCP(t, addr).Join(server.UsernamePrompt, "alice")
	waitPeers(t, relay, 1)
	bob := testhelpers.DialTCP(t, addr).Join(server.UsernamePrompt, "bob")
	alice.ExpectLine("[bob joined the chat]")

	bob.Send(strings.Repeat("x", 64))
	bob.ExpectClosed()
	alice.ExpectLine("[bob leave the chat]")
	waitPeers(t, relay, 1)
}

func TestAcceptor_SlowConsumerEvicted(t *testing.T) {
	cfg := server.NewConfig()
	cfg.QueueCapacity = 4
	cfg.WriteTimeout = 200 * time.Millisecond
	relay, _, addr := startRelay(t, cfg)

	// A raw connection that joins and then never reads
	slow, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = slow.Close() }()
	_, err = slow.Write([]byte("slow\n"))
	require.NoError(t, err)
	waitPeers(t, relay, 1)

	talker := testhelpers.DialTCP(t, addr).Join(server.UsernamePrompt, "talker")
	waitPeers(t, relay, 2)

	// Enough traffic to fill the socket buffers and then the outbox
	line := strings.Repeat("y", 1024)
	deadline := time.Now().Add(5 * time.Second)
	for relay.Registry().Len() == 2 && time.Now().Before(deadline) {
		talker.Send(line)
	}
	waitPeers(t, relay, 1)
	talker.ExpectLine("[slow leave the chat]")
}

func TestAcceptor_ServeReturnsNilOnCancel(t *testing.T) {
	listener, err := server.Listen("127.0.0.1:0")
	require.NoError(t, err)

	acceptor := server.NewAcceptor(server.NewRelay(nil, nil), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- acceptor.Serve(ctx, listener) }()

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "Serve did not return")
	}
}

func TestAcceptor_ShutdownClosesPeers(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	listener, err := server.Listen("127.0.0.1:0")
	require.NoError(t, err)

	relay := server.NewRelay(nil, log)
	acceptor := server.NewAcceptor(relay, nil, log)
	served := make(chan error, 1)
	go func() { served <- acceptor.Serve(context.Background(), listener) }()

	alice := testhelpers.DialTCP(t, listener.Addr().String()).Join(server.UsernamePrompt, "alice")
	waitPeers(t, relay, 1)

	require.NoError(t, acceptor.Shutdown(2*time.Second))
	alice.ExpectClosed()
	require.Equal(t, 0, relay.Registry().Len())
	require.True(t, errors.Is(<-served, server.ErrServerClosed))
}

func TestListen_BindFailure(t *testing.T) {
	listener, err := server.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	_, err = server.Listen(listener.Addr().String())
	require.ErrorContains(t, err, "failed to listen on")
}
