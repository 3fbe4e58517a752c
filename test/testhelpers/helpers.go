// Package testhelpers provides common utilities for testing the linechat relay.
//
// It wraps TCP and WebSocket client connections behind one Peer type that
// speaks the line protocol, so tests can mix transports, and keeps the HTTP
// request and assertion helpers used by the gateway tests.
package testhelpers

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds every blocking helper.
const DefaultTimeout = 2 * time.Second

// Peer is a test client connected to the relay.
type Peer struct {
	t     *testing.T
	lines chan string
	send  func(line string) error
	close func() error
}

// DialTCP connects a Peer to a TCP endpoint.
func DialTCP(t *testing.T, addr string) *Peer {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	require.NoError(t, err, "dial %s", addr)

	p := &Peer{
		t:     t,
		lines: make(chan string, 1024),
		send: func(line string) error {
			_, err := fmt.Fprintf(conn, "%s\n", line)
			return err
		},
		close: conn.Close,
	}
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// DialWebSocket connects a Peer to a WebSocket URL.
func DialWebSocket(t *testing.T, url string) *Peer {
	t.Helper()
	conn, err := ConnectWebSocket(url)
	require.NoError(t, err, "dial %s", url)

	p := &Peer{
		t:     t,
		lines: make(chan string, 1024),
		send: func(line string) error {
			return conn.WriteMessage(websocket.TextMessage, []byte(line))
		},
		close: conn.Close,
	}
	go func() {
		defer close(p.lines)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			p.lines <- string(data)
		}
	}()
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// Join answers the username prompt with username.
func (p *Peer) Join(prompt, username string) *Peer {
	p.t.Helper()
	p.ExpectLine(prompt)
	p.Send(username)
	return p
}

// Send writes one line.
func (p *Peer) Send(line string) {
	p.t.Helper()
	require.NoError(p.t, p.send(line), "send %q", line)
}

// ReadLine returns the next line or fails the test after DefaultTimeout.
func (p *Peer) ReadLine() string {
	p.t.Helper()
	select {
	case line, ok := <-p.lines:
		require.True(p.t, ok, "connection closed while waiting for a line")
		return line
	case <-time.After(DefaultTimeout):
		require.FailNow(p.t, "timed out waiting for a line")
		return ""
	}
}

// ExpectLine reads the next line and checks it equals want.
func (p *Peer) ExpectLine(want string) {
	p.t.Helper()
	require.Equal(p.t, want, p.ReadLine())
}

// ExpectNoLine checks that nothing arrives within wait.
func (p *Peer) ExpectNoLine(wait time.Duration) {
	p.t.Helper()
	select {
	case line, ok := <-p.lines:
		if ok {
			require.FailNow(p.t, "unexpected line", "got %q", line)
		}
	case <-time.After(wait):
	}
}

// ExpectClosed waits until the server closes the connection, discarding any
// lines still in flight.
func (p *Peer) ExpectClosed() {
	p.t.Helper()
	deadline := time.After(DefaultTimeout)
	for {
		select {
		case _, ok := <-p.lines:
			if !ok {
				return
			}
		case <-deadline:
			require.FailNow(p.t, "timed out waiting for the connection to close")
		}
	}
}

// Close closes the client side of the connection.
func (p *Peer) Close() error {
	return p.close()
}

// Eventually polls cond until it holds or DefaultTimeout elapses.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, DefaultTimeout, 5*time.Millisecond, msg)
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err, "Failed to create request")

	resp, err := client.Do(req)
	require.NoError(t, err, "Failed to make request")

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with
// an allowed Origin header.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, "http://localhost:8081")
}

// ConnectWebSocketWithOrigin creates a WebSocket connection sending origin,
// or no Origin header when origin is empty.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	require.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	require.Equal(t, expected, resp.Header.Get("Content-Type"), "unexpected content type")
}
