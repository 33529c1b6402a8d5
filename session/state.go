package session

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a device session.
type State int

const (
	// Disconnected is the initial state, no device is attached.
	Disconnected State = iota

	// Connecting means the device features are being queried.
	Connecting

	// Connected means the device answered and is idle.
	Connected

	// Busy means a device operation is waiting for the device,
	// and usually for the user confirming on it.
	Busy

	// Error is the transient state a failed session goes through
	// before being cleared back to Disconnected.
	Error
)

var stateNames = map[State]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
	Busy:         "busy",
	Error:        "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Operation names a device round-trip.
type Operation string

const (
	OpNone    Operation = ""
	OpConnect Operation = "connect"
	OpXpub    Operation = "xpub"
	OpSign    Operation = "sign"
)

// Observer is notified of every state transition and device
// round-trip of a session. StateChanged is invoked with the
// session lock held: implementations must not call back into
// the session.
type Observer interface {
	StateChanged(from, to State)
	DeviceCall(op Operation, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State)                  {}
func (nopObserver) DeviceCall(Operation, time.Duration, error) {}
