package snes

import (
	"errors"
	"fmt"
)

var ErrDeviceDisconnected = errors.New("device disconnected")

// TerminalError marks a failure after which the device connection cannot be used again.
type TerminalError struct {
	wrapped error
}

func NewTerminalError(err error) *TerminalError { return &TerminalError{wrapped: err} }

func (e *TerminalError) Unwrap() error { return e.wrapped }
func (e *TerminalError) Error() string {
	if e.wrapped == nil {
		return "snes device terminal error"
	}
	return fmt.Sprintf("snes device terminal error: %v", e.wrapped)
}

// IsTerminal reports whether err (or anything it wraps) is a *TerminalError.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
