package session

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrSessionClosed is the cause reported to operations whose
// session got disconnected while they were waiting on the device.
var ErrSessionClosed = errors.New("session was disconnected during the operation")

// ConnectionError is returned when the device couldn't be
// reached. The session is back to Disconnected.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "cannot connect to device: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AlreadyConnectingError is returned by Connect while another
// connection attempt is in flight.
type AlreadyConnectingError struct{}

func (e *AlreadyConnectingError) Error() string {
	return "a connection to the device is already in progress"
}

// DeviceBusyError is returned when an operation is requested
// while the device is processing another one.
type DeviceBusyError struct {
	Operation Operation
}

func (e *DeviceBusyError) Error() string {
	return fmt.Sprintf("device is busy (%s in progress), please wait", e.Operation)
}

// NotConnectedError is returned for device operations requested
// on a session that is not connected.
type NotConnectedError struct {
	State State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("device is not connected (session %s)", e.State)
}

// XpubRetrievalError is returned when the extended public key at
// Path couldn't be obtained. The session stays connected.
type XpubRetrievalError struct {
	Path   string
	Reason string
	Err    error
}

func (e *XpubRetrievalError) Error() string {
	msg := fmt.Sprintf("cannot retrieve xpub at %s", e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *XpubRetrievalError) Unwrap() error {
	return e.Err
}

// CancelledError is returned when the caller's context was done
// before the request reached the device. Nothing was asked of the
// device and the session stays connected.
type CancelledError struct {
	Operation Operation
	Err       error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled before reaching the device: %s", e.Operation, e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
