// ABOUTME: A single client session and its negotiating/active/closed state machine.
// ABOUTME: Per-session mutex serializes renegotiation against close.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/shivsinghin/Voice-Assistant/internal/transport"
)

// State is the lifecycle state of a session.
type State int

const (
	StateNegotiating State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one client's connection plus the runtime bound to it.
type Session struct {
	ID        string
	CreatedAt time.Time

	conn   transport.Connection
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu             sync.Mutex
	state          State
	renegotiations int
}

// Info is a read-only view of a session for listings.
type Info struct {
	ID             string    `json:"session_id"`
	State          string    `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	Renegotiations int       `json:"renegotiations"`
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Renegotiations returns how many times the session has been renegotiated.
func (s *Session) Renegotiations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renegotiations
}

// Conn returns the session's connection.
func (s *Session) Conn() transport.Connection { return s.conn }

// Done is closed when the session's runtime has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:             s.ID,
		State:          s.state.String(),
		CreatedAt:      s.CreatedAt,
		Renegotiations: s.renegotiations,
	}
}

// renegotiate applies offer to the existing connection. reused is false when
// the session closed before the lock was acquired.
func (s *Session) renegotiate(ctx context.Context, offer transport.Offer) (answer transport.Answer, reused bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return transport.Answer{}, false, nil
	}
	if err := s.conn.Renegotiate(ctx, offer); err != nil {
		return transport.Answer{}, false, err
	}
	s.renegotiations++
	return s.conn.Answer(), true, nil
}

// close moves the session to closed, cancels its runtime, and disconnects the
// transport. Only the first call does anything.
func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	// Disconnect runs OnClosed handlers, which call back into the manager.
	return s.conn.Disconnect(ctx)
}
