// Package transport abstracts the duplex channel to the external
// messaging network. The session core consumes connections through the
// Connection interface; the wire protocol behind it is opaque.
package transport

import (
	"context"
	"errors"

	"github.com/pedrogk/msgmux/internal/core"
	"github.com/pedrogk/msgmux/internal/credentials"
)

// CloseAuthFailure is the close reason the gateway uses when the
// credential material was invalidated remotely (e.g. logout from the
// paired device). Any other code is treated as recoverable.
const CloseAuthFailure = 401

var ErrConnectionClosed = errors.New("connection closed")

type EventKind int

const (
	EventQR EventKind = iota
	EventOpened
	EventClosed
	EventMessage
)

// Message is one inbound message from the network.
type Message struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Content  string `json:"content"`
	FromSelf bool   `json:"from_self"`
}

// Event is one item of a connection's merged event stream. Exactly the
// fields for its Kind are set.
type Event struct {
	Kind    EventKind
	QR      string          // EventQR: the pairing challenge payload
	Code    int             // EventClosed: close reason code
	Device  core.DeviceInfo // EventOpened
	Message *Message        // EventMessage
}

// Connection is one tenant's live channel to the messaging network.
// Events are delivered in arrival order on a single channel, which the
// gateway closes after the final EventClosed.
type Connection interface {
	Events() <-chan Event
	Send(ctx context.Context, recipient, content string) error
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)
	Logout(ctx context.Context) error
	Close() error
}

// Factory opens connections bound to a tenant's credential handle.
type Factory interface {
	Open(ctx context.Context, creds credentials.Handle) (Connection, error)
}
