package bip32util

import "fmt"

// MalformedPathError is returned when a derivation path
// string cannot be parsed. Err holds the underlying parse
// failure, if any.
type MalformedPathError struct {
	Path   string
	Reason string
	Err    error
}

func malformed(path, reason string, err error) *MalformedPathError {
	return &MalformedPathError{Path: path, Reason: reason, Err: err}
}

func (e *MalformedPathError) Error() string {
	msg := fmt.Sprintf("malformed derivation path %q: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedPathError) Unwrap() error {
	return e.Err
}
