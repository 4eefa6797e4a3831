// Package wire implements the line-oriented text protocol spoken against the
// playernsd daemon: framing, the inbound/outbound command vocabulary, and the
// closed set of server error kinds.
package wire

import "fmt"

// ProtocolVersion is the only version literal this client understands.
const ProtocolVersion = "0001"

// ClientIDWidth is the canonical fixed-width, NUL-terminated encoding used
// wherever a ClientID is exported as a fixed-size byte array (the
// list-clients ACK payload). Internally a ClientID is a plain string.
const ClientIDWidth = 64

// ClientID names a client on the simulated network.
type ClientID = string

// Command identifies one line of the protocol, inbound or outbound.
type Command uint8

const (
	CmdUnknown Command = iota
	CmdGreetings
	CmdRegistered
	CmdPing
	CmdPong
	CmdListClients
	CmdMsgText
	CmdMsgBin
	CmdPropGet
	CmdPropSet
	CmdPropVal
	CmdError
	CmdBye
)

var commandNames = map[Command]string{
	CmdUnknown:     "unknown",
	CmdGreetings:   "greetings",
	CmdRegistered:  "registered",
	CmdPing:        "ping",
	CmdPong:        "pong",
	CmdListClients: "listclients",
	CmdMsgText:     "msgtext",
	CmdMsgBin:      "msgbin",
	CmdPropGet:     "propget",
	CmdPropSet:     "propset",
	CmdPropVal:     "propval",
	CmdError:       "error",
	CmdBye:         "bye",
}

var namesToCommand = func() map[string]Command {
	m := make(map[string]Command, len(commandNames))
	for cmd, name := range commandNames {
		m[name] = cmd
	}
	return m
}()

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// CommandFromToken resolves a lowercase protocol token to a Command, or
// CmdUnknown if the token isn't part of the vocabulary in spec §4.1.
func CommandFromToken(token string) Command {
	if cmd, ok := namesToCommand[token]; ok {
		return cmd
	}
	return CmdUnknown
}

// ServerError is the closed enumeration of error kinds the daemon may raise.
type ServerError uint8

const (
	ErrUnknown ServerError = iota
	ErrClientIDInUse
	ErrInvalidParameter
	ErrInvalidParameterCount
	ErrUnknownCommand
	ErrAlreadyRegistered
	ErrUnknownClient
	ErrPropertyNotExist
)

var serverErrorNames = map[string]ServerError{
	"unknown":               ErrUnknown,
	"clientidinuse":         ErrClientIDInUse,
	"invalidparameter":      ErrInvalidParameter,
	"invalidparametercount": ErrInvalidParameterCount,
	"unknowncommand":        ErrUnknownCommand,
	"alreadyregistered":     ErrAlreadyRegistered,
	"unknownclient":         ErrUnknownClient,
	"propertynotexist":      ErrPropertyNotExist,
}

var serverErrorStrings = map[ServerError]string{
	ErrUnknown:               "unknown",
	ErrClientIDInUse:         "clientidinuse",
	ErrInvalidParameter:      "invalidparameter",
	ErrInvalidParameterCount: "invalidparametercount",
	ErrUnknownCommand:        "unknowncommand",
	ErrAlreadyRegistered:     "alreadyregistered",
	ErrUnknownClient:         "unknownclient",
	ErrPropertyNotExist:      "propertynotexist",
}

func (e ServerError) String() string {
	if s, ok := serverErrorStrings[e]; ok {
		return s
	}
	return "unknown"
}

// ServerErrorFromToken resolves the error-kind token of an `error` line.
// Unrecognized kinds map to ErrUnknown, never to a Go error, so that an
// unfamiliar kind is still surfaced to the handler rather than dropped
// (spec §8 invariant 6).
func ServerErrorFromToken(token string) ServerError {
	if e, ok := serverErrorNames[token]; ok {
		return e
	}
	return ErrUnknown
}
