package trezor

import "fmt"

// InvalidInputError is returned when an input of the unsigned
// transaction is missing Field, or when Field can't be translated.
type InvalidInputError struct {
	Index int
	Field string
	Err   error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input %d: %s: %s", e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid input %d: missing %s", e.Index, e.Field)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// AmbiguousOutputError is returned for outputs carrying both
// an address and a derivation path.
type AmbiguousOutputError struct {
	Index int
}

func (e *AmbiguousOutputError) Error() string {
	return fmt.Sprintf("output %d has both an address and a derivation path", e.Index)
}

// InvalidOutputError is returned for outputs that are neither
// a well formed self output nor an external output.
type InvalidOutputError struct {
	Index  int
	Reason string
	Err    error
}

func (e *InvalidOutputError) Error() string {
	msg := fmt.Sprintf("invalid output %d: %s", e.Index, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidOutputError) Unwrap() error {
	return e.Err
}

// TransactionBuildError is returned when no signing request
// could be built. Nothing has been sent to the device.
type TransactionBuildError struct {
	Reason string
	Err    error
}

func (e *TransactionBuildError) Error() string {
	msg := "cannot build signing request"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransactionBuildError) Unwrap() error {
	return e.Err
}

// SigningRejectedError is returned when the device, or the user
// on it, refused to sign. Reason is the device reported reason.
type SigningRejectedError struct {
	Reason string
	Code   string
	Err    error
}

func (e *SigningRejectedError) Error() string {
	msg := "device rejected signing request"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SigningRejectedError) Unwrap() error {
	return e.Err
}
