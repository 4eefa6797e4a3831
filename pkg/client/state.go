package client

import "fmt"

// ConnectionState is one of the five states of the engine's connection state
// machine (spec.md §4.3). The zero value is Disconnected.
type ConnectionState uint8

const (
	Disconnected ConnectionState = iota
	Connected
	Greeting
	WaitingRegistration
	Registered
)

var stateNames = map[ConnectionState]string{
	Disconnected:        "disconnected",
	Connected:           "connected",
	Greeting:            "greeting",
	WaitingRegistration: "waiting_registration",
	Registered:          "registered",
}

func (s ConnectionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}
