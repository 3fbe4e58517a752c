package server

import "errors"

var (
	// ErrDuplicatePeer is returned by Registry.Register when the identity is
	// already registered. The transport makes this unreachable; seeing it
	// means an internal-consistency fault.
	ErrDuplicatePeer = errors.New("server: peer identity already registered")

	// ErrLineTooLong is returned by a LineConn when an inbound line exceeds
	// the configured maximum length.
	ErrLineTooLong = errors.New("server: line exceeds maximum length")

	// ErrInvalidUTF8 is returned by a LineConn when an inbound line is not
	// valid UTF-8.
	ErrInvalidUTF8 = errors.New("server: line is not valid UTF-8")

	// ErrServerClosed is returned by Acceptor.Serve after Shutdown.
	ErrServerClosed = errors.New("server: acceptor closed")
)
