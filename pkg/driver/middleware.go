package driver

import "github.com/samsamfire/playernsd/internal/wire"

// Address identifies a device endpoint inside the hosting middleware. Its
// real shape is owned by that middleware (out of scope per spec.md §1/§6);
// here it is an opaque string.
type Address string

// Subtype is the closed set of request/command/data subtypes spec.md §6
// names as flowing across the middleware seam.
type Subtype uint8

const (
	SubtypeDataRecv Subtype = iota
	SubtypeDataError
	SubtypeReqListClients
	SubtypeReqPropGet
	SubtypeReqPropSet
	SubtypeCmdPropSet
	SubtypeCmdSend
	SubtypeDataPosition2D
)

var subtypeNames = map[Subtype]string{
	SubtypeDataRecv:       "data_recv",
	SubtypeDataError:      "data_error",
	SubtypeReqListClients: "req_listclients",
	SubtypeReqPropGet:     "req_propget",
	SubtypeReqPropSet:     "req_propset",
	SubtypeCmdPropSet:     "cmd_propset",
	SubtypeCmdSend:        "cmd_send",
	SubtypeDataPosition2D: "data_position2d",
}

func (s Subtype) String() string {
	if name, ok := subtypeNames[s]; ok {
		return name
	}
	return "unknown_subtype"
}

// Middleware is the seam the driver bridges across: the external
// device-table and publish/subscribe substrate spec.md §1/§6 names as out
// of scope, reduced to three of the four primitives spec.md §6 lists
// (Register, Publish, Subscribe). The fourth, Match, isn't modeled as its
// own method: Match's job is picking which Request a given addr/subtype
// pair becomes, and Dispatch's subtype switch already does exactly that
// on the driver's side of the seam, so a separate Middleware.Match would
// just be asked to agree with Dispatch rather than decide anything.
type Middleware interface {
	// Register creates the endpoint under the given code and index.
	Register(code string, index int) error

	// Publish delivers an asynchronous message of the given subtype to
	// whoever subscribes to addr.
	Publish(addr Address, subtype Subtype, payload []byte) error

	// Subscribe arranges for position2d updates at addr to reach the
	// driver's Dispatch as SubtypeDataPosition2D requests.
	Subscribe(addr Address) error
}

// Request is what the middleware hands the driver's dispatcher for one
// incoming request, command, or data message (spec.md §4.6).
type Request struct {
	Subtype Subtype
	Addr    Address

	Key   string // REQ_PROPGET / REQ_PROPSET / CMD_PROPSET
	Value string // REQ_PROPSET / CMD_PROPSET

	Target wire.ClientID // CMD_SEND; empty means broadcast
	Text   string        // CMD_SEND text payload (used when Binary is nil)
	Binary []byte        // CMD_SEND binary payload

	Position Position2D // DATA position2d state/geom
}

// PropertyAck is the REQ_PROPGET reply payload (spec.md §4.6): value_count
// excludes any implicit NUL, per the Open Question decision in SPEC_FULL.md.
type PropertyAck struct {
	Key        string
	Value      string
	ValueCount int
}

// Response is the dispatcher's reply to a Request that expects one
// (REQ_LISTCLIENTS, REQ_PROPGET). Requests that don't ack (CMD_SEND,
// CMD_PROPSET, DATA position2d) return a zero Response.
type Response struct {
	ClientList []wire.ClientID
	Property   PropertyAck
}

// ClientListBytes encodes ClientList as the fixed-width, NUL-padded byte
// array the REQ_LISTCLIENTS ACK carries across the middleware seam
// (spec.md §4.6, §8 scenario 5: "driver ACKs with three entries of
// ID_WIDTH bytes each"). len(result) == len(ClientList)*wire.ClientIDWidth;
// each ClientIDWidth-byte slot holds the id NUL-padded, or truncated with a
// forced trailing NUL for an id that doesn't fit.
func (r Response) ClientListBytes() []byte {
	buf := make([]byte, len(r.ClientList)*wire.ClientIDWidth)
	for i, id := range r.ClientList {
		slot := buf[i*wire.ClientIDWidth : (i+1)*wire.ClientIDWidth]
		if len(id) >= wire.ClientIDWidth {
			copy(slot, id[:wire.ClientIDWidth-1])
			continue
		}
		copy(slot, id)
	}
	return buf
}
