// Package server manages individual peer sessions, handling the username
// handshake, the reader and writer loops, and lifecycle control for each
// connection.
package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// UsernamePrompt is the first line written to every new connection.
const UsernamePrompt = "What is your username"

// Relay owns the registry shared by every session, whatever transport the
// session arrived on.
type Relay struct {
	registry      *Registry
	queueCapacity int
	rateLimit     RateLimitConfig
	log           *slog.Logger
}

// NewRelay creates a Relay configured from cfg. A nil cfg uses defaults.
func NewRelay(cfg *Config, log *slog.Logger) *Relay {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		registry:      NewRegistry(log),
		queueCapacity: cfg.QueueCapacity,
		rateLimit:     cfg.RateLimit,
		log:           log,
	}
}

// Registry returns the registry of live peers.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// ServeConn runs a session on conn and returns once both of its loops have
// ended. The connection is always closed on return.
func (r *Relay) ServeConn(conn LineConn) {
	s := &session{
		id:       uuid.New(),
		conn:     conn,
		identity: Identity(conn.RemoteAddr()),
		registry: r.registry,
		queueCap: r.queueCapacity,
		limiter:  newLineLimiter(r.rateLimit),
	}
	s.log = r.log.With("session_id", s.id.String(), "remote_addr", string(s.identity))
	s.run()
}

// session is one accepted connection. username is set once by the handshake;
// the reader loop owns conn reads and the writer loop owns the outbox consumer
// end and conn writes.
type session struct {
	id       uuid.UUID
	conn     LineConn
	identity Identity
	registry *Registry
	queueCap int
	limiter  *lineLimiter
	log      *slog.Logger
	username string
}

func (s *session) run() {
	defer s.closeConnection()

	username, ok := s.handshake()
	if !ok {
		return
	}
	s.username = username
	s.log = s.log.With("username", username)

	outbox := NewOutbox(s.queueCap)
	if err := s.registry.Register(s.identity, outbox); err != nil {
		s.log.Error("Abandoning connection", "error", err)
		return
	}
	s.log.Info("Peer connected", "peers", s.registry.Len())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(outbox)
	}()

	s.registry.Broadcast(s.identity, Joined{Username: username})

	s.readLoop()

	// Unblock a writer stuck on a peer that stopped reading
	s.closeConnection()
	<-writerDone
}

// handshake prompts for a username and reads exactly one line. It reports
// false when the stream ends or fails first; nothing is registered then.
func (s *session) handshake() (string, bool) {
	if err := s.conn.WriteLine(UsernamePrompt); err != nil {
		s.log.Debug("Handshake abandoned while prompting", "error", err)
		return "", false
	}
	username, err := s.conn.ReadLine()
	if err != nil {
		s.log.Debug("Handshake abandoned before username", "error", err)
		return "", false
	}
	return username, true
}

// readLoop turns every inbound line into a Chat broadcast. When the stream
// ends the peer is deregistered and its Left notice broadcast.
func (s *session) readLoop() {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			s.registry.Deregister(s.identity)
			s.registry.Broadcast(s.identity, Left{Username: s.username})
			s.logDisconnect(err)
			return
		}

		if !s.limiter.allow(time.Now()) {
			s.log.Warn("Rate limit exceeded; discarding line")
			continue
		}

		s.registry.Broadcast(s.identity, Chat{Sender: s.username, Content: line})
	}
}

// writeLoop drains the outbox into the connection until the outbox is closed
// or a write fails. It closes the connection on exit so that an evicted peer
// is disconnected and its reader loop ends.
func (s *session) writeLoop(outbox *Outbox) {
	defer s.closeConnection()

	for msg := range outbox.C() {
		if err := s.conn.WriteLine(msg.String()); err != nil {
			if isExpectedCloseError(err) {
				s.log.Debug("Write on closed connection", "error", err)
			} else {
				s.log.Warn("Write failed", "error", err)
			}
			return
		}
	}
}

// logDisconnect logs why the reader loop ended
func (s *session) logDisconnect(err error) {
	switch {
	case errors.Is(err, ErrLineTooLong), errors.Is(err, ErrInvalidUTF8):
		s.log.Warn("Peer disconnected on malformed input", "error", err)
	case isExpectedCloseError(err):
		s.log.Info("Peer disconnected")
	default:
		s.log.Warn("Peer disconnected on read error", "error", err)
	}
}

// closeConnection closes the connection, ignoring the errors of a second close
func (s *session) closeConnection() {
	if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.Debug("Error closing connection", "error", err)
	}
}
