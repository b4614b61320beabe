// Package session drives the protocol of one client connection from its name
// line to its farewell.
package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"adalbertofjr/chat-relay/relay/ratelimiter"
	"adalbertofjr/chat-relay/relay/text"
)

// Limiter is the part of the rate limiter a session needs.
type Limiter interface {
	SetName(id ratelimiter.ClientID, name string) error
	IsBlocked(id ratelimiter.ClientID) (bool, int, error)
	IncrementAndCheck(id ratelimiter.ClientID, limit int) (int, error)
	Deregister(id ratelimiter.ClientID) error
}

type State int

const (
	AwaitingName State = iota
	Active
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingName:
		return "awaiting-name"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	// MessageLimit is the number of messages accepted before the client is locked out.
	MessageLimit int
	// Lockout is only used to tell the client how long the block lasts.
	Lockout time.Duration
	// DisconnectOnBlock closes the connection right after the limit-reached notice.
	DisconnectOnBlock bool
}

// Session is not safe for concurrent use; Run is called from exactly one goroutine.
type Session struct {
	id        ratelimiter.ClientID
	conn      Conn
	limiter   Limiter
	transform text.Transform
	config    Config

	state State
	name  string
}

func New(id ratelimiter.ClientID, conn Conn, limiter Limiter, transform text.Transform, config Config) *Session {
	if transform == nil {
		transform = text.Reverse
	}
	return &Session{
		id:        id,
		conn:      conn,
		limiter:   limiter,
		transform: transform,
		config:    config,
		state:     AwaitingName,
	}
}

func (s *Session) ID() ratelimiter.ClientID { return s.id }

func (s *Session) Name() string { return s.name }

func (s *Session) State() State { return s.state }

// Run drives the session until the client says BYE, the connection ends or a
// bookkeeping error occurs. The record is deregistered and the connection
// closed before Run returns. End of stream is not reported as an error.
func (s *Session) Run() error {
	if s.state == Terminated {
		return nil
	}
	defer s.terminate()

	if err := s.awaitName(); err != nil {
		return err
	}
	if s.state != Active {
		return nil
	}

	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return readError(s.id, err)
		}
		done, err := s.handle(line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *Session) awaitName() error {
	line, err := s.conn.ReadLine()
	if err != nil {
		return readError(s.id, err)
	}

	s.name = line
	if err := s.limiter.SetName(s.id, line); err != nil {
		return fmt.Errorf("session %s: register name: %w", s.id, err)
	}
	log.Printf("Client %s registered as %q\n", s.id, s.name)

	if err := s.send(welcomeMessage(s.name)); err != nil {
		return err
	}
	s.state = Active
	return nil
}

// handle processes one line in the Active state and reports whether the session is over.
func (s *Session) handle(line string) (bool, error) {
	if line == Sentinel {
		return true, s.send(farewellMessage(s.name))
	}

	blocked, remaining, err := s.limiter.IsBlocked(s.id)
	if err != nil {
		return true, fmt.Errorf("session %s: block status: %w", s.id, err)
	}
	if blocked {
		return false, s.send(blockedMessage(remaining))
	}

	count, err := s.limiter.IncrementAndCheck(s.id, s.config.MessageLimit)
	if err != nil {
		return true, fmt.Errorf("session %s: count message: %w", s.id, err)
	}
	if count > s.config.MessageLimit {
		log.Printf("Client %s (%s) reached the limit of %d messages\n", s.id, s.name, s.config.MessageLimit)
		if err := s.send(limitReachedMessage(s.config.Lockout)); err != nil {
			return true, err
		}
		return s.config.DisconnectOnBlock, nil
	}

	log.Printf("Message received from %s: %q\n", s.name, line)
	return false, s.send(replyMessage(s.transform(line), count))
}

func (s *Session) send(msg string) error {
	if err := s.conn.Send(msg); err != nil {
		return fmt.Errorf("session %s: send: %w", s.id, err)
	}
	return nil
}

func (s *Session) terminate() {
	s.state = Terminated
	if err := s.limiter.Deregister(s.id); err != nil {
		log.Printf("Error removing client %s: %v\n", s.id, err)
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("Error closing connection of client %s: %v\n", s.id, err)
	}
	log.Printf("Client %s disconnected\n", s.id)
}

// readError maps end of stream and a locally closed connection to a clean exit.
func readError(id ratelimiter.ClientID, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return fmt.Errorf("session %s: read: %w", id, err)
}
