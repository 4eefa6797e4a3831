package client

import "github.com/samsamfire/playernsd/internal/wire"

// Handler is the capability set an engine surfaces events through (spec.md
// §9 design note: "inheritance of an observer interface is just a
// capability set"). A single concrete type implementing all six methods is
// the vtable lowering; nothing requires it to be split further.
type Handler interface {
	// StateChanged is called exactly once per transition, before any event
	// that depends on the new state is surfaced.
	StateChanged(state ConnectionState)

	// ErrorRaised is called for every `error <kind> [detail]` line, whether
	// or not the engine itself reacts to that kind.
	ErrorRaised(kind wire.ServerError, detail string)

	// ReceiveText is called for a `msgtext <source>` frame with its body.
	ReceiveText(source wire.ClientID, body string)

	// ReceiveBinary is called for a `msgbin <source> <len>` frame with its
	// payload. The byte slice is owned by the caller only for the duration
	// of the call; Handler implementations that need to retain it must copy.
	ReceiveBinary(source wire.ClientID, payload []byte)

	// ClientListResponse is called when a listclients reply arrives,
	// independent of whether a rendezvous caller is currently waiting on it.
	ClientListResponse(ids []wire.ClientID)

	// PropertyValue is called when a propval reply arrives, independent of
	// whether a rendezvous caller is currently waiting on it.
	PropertyValue(key, value string)
}

// PropertyView is the last-received {key, value} pair for a property-get
// (spec.md §3). Value stores the exact byte length with no implicit NUL
// (Open Question decision in SPEC_FULL.md); CString provides a NUL-
// terminated copy for consumers that need C-string semantics.
type PropertyView struct {
	Key   string
	Value string
}

// CString returns Value with a trailing NUL appended, for parity with
// consumers that expect C-string semantics. Nothing internal to this module
// uses it.
func (p PropertyView) CString() string {
	return p.Value + "\x00"
}

// NoopHandler implements Handler with no-op methods, useful as an embeddable
// base for callers that only care about a subset of events.
type NoopHandler struct{}

func (NoopHandler) StateChanged(ConnectionState)         {}
func (NoopHandler) ErrorRaised(wire.ServerError, string) {}
func (NoopHandler) ReceiveText(wire.ClientID, string)    {}
func (NoopHandler) ReceiveBinary(wire.ClientID, []byte)  {}
func (NoopHandler) ClientListResponse([]wire.ClientID)   {}
func (NoopHandler) PropertyValue(string, string)         {}
