package engine

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrIllegalState reports a broken invariant or a failed collaborator call.
	ErrIllegalState = errors.New("illegal state")
	// ErrShuttingDown is returned when a campaign finishes on request.
	ErrShuttingDown = errors.New("shutting down")
	// ErrRestartRequired asks the supervisor to restart the worker process.
	ErrRestartRequired = errors.New("restart required")
)

// IllegalState returns an error wrapping ErrIllegalState.
func IllegalState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, fmt.Sprintf(format, args...))
}

// PanicError is a harness panic recovered by InProcessExecutor.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("target panicked: %v", e.Value)
}

// Unwrap makes a recovered panic match ErrRestartRequired.
func (e *PanicError) Unwrap() error { return ErrRestartRequired }
