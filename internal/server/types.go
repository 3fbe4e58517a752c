// Package server defines the chat messages relayed between peers and utility
// helpers that are reused across session and registry logic.
package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// Identity is the registry key of a peer: the remote endpoint address of its
// connection. The transport keeps it unique while the connection is open.
type Identity string

// Message is one of Joined, Left or Chat. The unexported marker method keeps
// the set of variants closed to this package.
type Message interface {
	fmt.Stringer
	message()
}

// Joined announces a peer that completed the handshake.
type Joined struct {
	Username string
}

// Left announces a peer whose reader loop ended.
type Left struct {
	Username string
}

// Chat is one line of content sent by a peer.
type Chat struct {
	Sender  string
	Content string
}

func (Joined) message() {}
func (Left) message()   {}
func (Chat) message()   {}

// String renders the join notice.
func (m Joined) String() string {
	return fmt.Sprintf("[%s joined the chat]", m.Username)
}

// String renders the leave notice.
func (m Left) String() string {
	return fmt.Sprintf("[%s leave the chat]", m.Username)
}

// String renders the chat line as "sender: content".
func (m Chat) String() string {
	return m.Sender + ": " + m.Content
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
