package client

import (
	"errors"
	"fmt"

	"github.com/samsamfire/playernsd/internal/wire"
)

// Fatal protocol errors (spec.md §7): these terminate the connection.
var (
	ErrIncompatibleProtocol = errors.New("client: incompatible protocol version")
	ErrUnexpectedCommand    = errors.New("client: unexpected command for current state")
	ErrMalformedFrame       = errors.New("client: malformed frame")
)

// Caller contract violations (spec.md §7): these fail the call without
// corrupting engine state.
var (
	ErrNotConnected         = errors.New("client: not connected")
	ErrWrongState           = errors.New("client: operation not valid in current state")
	ErrAlreadyRegistered    = errors.New("client: already registered")
	ErrNoRendezvousInFlight = errors.New("client: no matching request in flight")
)

// ServerRaisedError wraps a recoverable ServerError surfaced by the daemon
// via an `error <kind> [detail]` line (spec.md §3, §7).
type ServerRaisedError struct {
	Kind   wire.ServerError
	Detail string
}

func (e *ServerRaisedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("client: server error: %s", e.Kind)
	}
	return fmt.Sprintf("client: server error: %s: %s", e.Kind, e.Detail)
}

// ErrConnectionLost is delivered to rendezvous waiters when the connection
// drops while a request is outstanding (spec.md §4.4 cancellation).
var ErrConnectionLost = errors.New("client: connection lost while awaiting reply")
