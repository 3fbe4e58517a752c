// Package server frames byte streams into newline-delimited text lines for
// peer sessions.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
	"unicode/utf8"
)

//go:generate go run go.uber.org/mock/mockgen -source=conn.go -destination=mocks/mock_line_conn.go -package=mocks

// LineConn is a bidirectional stream of text lines. ReadLine is called only
// by the session reader loop and WriteLine only by one writer at a time.
type LineConn interface {
	// ReadLine returns the next line without its terminator.
	ReadLine() (string, error)
	// WriteLine writes line followed by a newline.
	WriteLine(line string) error
	// RemoteAddr identifies the other end of the connection.
	RemoteAddr() string
	// Close closes the connection, unblocking pending reads and writes.
	Close() error
}

// tcpLineConn frames a net.Conn with "\n" terminated lines. A trailing "\r"
// is stripped from inbound lines.
type tcpLineConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	maxLineLen   int
	writeTimeout time.Duration
}

// NewTCPLineConn wraps conn. Inbound lines longer than maxLineLen bytes fail
// with ErrLineTooLong. A positive writeTimeout bounds every WriteLine.
func NewTCPLineConn(conn net.Conn, maxLineLen int, writeTimeout time.Duration) LineConn {
	if maxLineLen <= 0 {
		maxLineLen = DefaultMaxLineLength
	}
	scanner := bufio.NewScanner(conn)
	// room for the "\r\n" terminator on top of the payload
	scanner.Buffer(make([]byte, 0, min(maxLineLen+2, 4096)), maxLineLen+2)
	scanner.Split(bufio.ScanLines)

	return &tcpLineConn{
		conn:         conn,
		scanner:      scanner,
		maxLineLen:   maxLineLen,
		writeTimeout: writeTimeout,
	}
}

// ReadLine implements LineConn.
func (c *tcpLineConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		switch {
		case err == nil:
			return "", io.EOF
		case errors.Is(err, bufio.ErrTooLong):
			return "", fmt.Errorf("read from %s: %w", c.RemoteAddr(), ErrLineTooLong)
		default:
			return "", err
		}
	}
	line := c.scanner.Text()
	if len(line) > c.maxLineLen {
		return "", fmt.Errorf("read from %s: %w", c.RemoteAddr(), ErrLineTooLong)
	}
	if !utf8.ValidString(line) {
		return "", fmt.Errorf("read from %s: %w", c.RemoteAddr(), ErrInvalidUTF8)
	}
	return line, nil
}

// WriteLine implements LineConn.
func (c *tcpLineConn) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

// RemoteAddr implements LineConn.
func (c *tcpLineConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Close implements LineConn.
func (c *tcpLineConn) Close() error {
	return c.conn.Close()
}
