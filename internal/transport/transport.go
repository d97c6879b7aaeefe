// ABOUTME: Transport boundary for sessions: offers, answers, and the bidirectional Connection.
// ABOUTME: Session code depends only on these interfaces, never on a concrete transport.

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOffer indicates a negotiation payload that cannot be used.
var ErrInvalidOffer = errors.New("invalid offer")

// ErrClosed indicates the connection has been disconnected.
var ErrClosed = errors.New("connection closed")

// ErrNotAttached indicates no client socket is attached yet and the send
// queue is full.
var ErrNotAttached = errors.New("connection not attached")

// Offer is the client's negotiation payload.
type Offer struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Validate checks that the offer is usable.
func (o Offer) Validate() error {
	if o.Type != "offer" {
		return fmt.Errorf("%w: type must be \"offer\", got %q", ErrInvalidOffer, o.Type)
	}
	if strings.TrimSpace(o.SDP) == "" {
		return fmt.Errorf("%w: empty sdp", ErrInvalidOffer)
	}
	return nil
}

// Answer is the server's negotiation response.
type Answer struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Connection is one long-lived bidirectional session channel.
type Connection interface {
	// ID returns the session identifier this connection serves.
	ID() string
	// Initialize performs the first negotiation.
	Initialize(ctx context.Context, offer Offer) error
	// Renegotiate applies a new offer to the live connection.
	Renegotiate(ctx context.Context, offer Offer) error
	// Answer returns the answer for the most recent negotiation.
	Answer() Answer
	// Receive blocks for the next inbound frame.
	Receive(ctx context.Context) ([]byte, error)
	// Send delivers one outbound frame.
	Send(ctx context.Context, frame []byte) error
	// OnClosed registers fn to run once when the connection closes for any reason.
	OnClosed(fn func())
	// Disconnect closes the connection. Safe to call more than once.
	Disconnect(ctx context.Context) error
	// Done is closed once the connection is closed.
	Done() <-chan struct{}
}

// Factory creates connections for new sessions.
type Factory interface {
	NewConnection(id string) Connection
}
