// Package sink routes decoded events to their configured destination:
// per-component CSV log files or an AMQP fanout exchange.
package sink

import (
	"errors"
	"fmt"
)

// Sentinel errors for sink failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrSinkMissing indicates a self-logged event arrived before the
	// component's sink was opened.
	ErrSinkMissing = errors.New("no sink registered for component")

	// ErrSinkClosed indicates a write after the router finished.
	ErrSinkClosed = errors.New("sink already closed")

	// ErrBadSinkName indicates a component name unusable as a file name.
	ErrBadSinkName = errors.New("invalid sink name")
)

// SinkError wraps an underlying error with the failing operation and sink
// name. It preserves the original error in the chain for errors.As.
type SinkError struct {
	// Op is the operation that failed: "open", "write", or "close".
	Op string
	// Name is the sink involved, if any.
	Name string
	// Err is the underlying error.
	Err error
}

func (e *SinkError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("sink %s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("sink %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *SinkError) Unwrap() error {
	return e.Err
}

// IsSinkError returns true if the error is a sink failure.
func IsSinkError(err error) bool {
	var sinkErr *SinkError
	return errors.As(err, &sinkErr)
}
