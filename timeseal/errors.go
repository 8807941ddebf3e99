package timeseal

import (
	"errors"
	"fmt"
)

// Sentinel errors for TimeSeal connections.
var (
	// ErrCanceled indicates an operation on a canceled connection.
	ErrCanceled = errors.New("connection canceled")

	// ErrLineTooLong indicates a record exceeded MaxBufferSize without a terminator.
	ErrLineTooLong = errors.New("line too long")

	// ErrNotConnected indicates an operation was attempted without a connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates Start was called on a connection that was already started.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrTrailingNewline indicates a write whose text already ends in '\n'.
	ErrTrailingNewline = errors.New("text ends with a newline")
)

// TransportError represents a connect, read or write failure of the
// underlying byte stream.
type TransportError struct {
	Op    string // "dial", "read" or "write"
	Addr  string
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Cause)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

func newTransportError(op, addr string, cause error) error {
	return &TransportError{Op: op, Addr: addr, Cause: cause}
}

// HelperError reports that the native timestamp helper could not be found or
// started. It is recovered by connecting directly.
type HelperError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *HelperError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("timestamp helper unavailable: %v", e.Cause)
	}
	return fmt.Sprintf("timestamp helper %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *HelperError) Unwrap() error {
	return e.Cause
}

// NewHelperError creates a new helper error.
func NewHelperError(path string, cause error) error {
	return &HelperError{Path: path, Cause: cause}
}
