// Package server adapts WebSocket connections to the line protocol so that
// browser peers share the registry with TCP peers.
package server

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// wsIdentityPrefix keeps WebSocket identities apart from TCP ones, since the
// same remote ip:port may reach both listeners.
const wsIdentityPrefix = "ws://"

// wsLineConn carries one line per text frame.
type wsLineConn struct {
	conn         *websocket.Conn
	maxLineLen   int
	writeTimeout time.Duration
}

// NewWebSocketLineConn wraps an upgraded connection. Frames larger than
// maxLineLen bytes fail with ErrLineTooLong.
func NewWebSocketLineConn(conn *websocket.Conn, maxLineLen int, writeTimeout time.Duration) LineConn {
	if maxLineLen <= 0 {
		maxLineLen = DefaultMaxLineLength
	}
	// a trailing "\r\n" is tolerated and stripped
	conn.SetReadLimit(int64(maxLineLen) + 2)
	return &wsLineConn{conn: conn, maxLineLen: maxLineLen, writeTimeout: writeTimeout}
}

// ReadLine implements LineConn. Only text frames carry lines.
func (c *wsLineConn) ReadLine() (string, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				return "", fmt.Errorf("read from %s: %w", c.RemoteAddr(), ErrLineTooLong)
			}
			return "", err
		}
		if messageType != websocket.TextMessage {
			continue
		}

		line := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
		if len(line) > c.maxLineLen {
			return "", fmt.Errorf("read from %s: %w", c.RemoteAddr(), ErrLineTooLong)
		}
		if !utf8.ValidString(line) {
			return "", fmt.Errorf("read from %s: %w", c.RemoteAddr(), ErrInvalidUTF8)
		}
		return line, nil
	}
}

// WriteLine implements LineConn.
func (c *wsLineConn) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// RemoteAddr implements LineConn.
func (c *wsLineConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return wsIdentityPrefix + addr.String()
	}
	return wsIdentityPrefix
}

// Close implements LineConn.
func (c *wsLineConn) Close() error {
	return c.conn.Close()
}
