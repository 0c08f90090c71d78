package bridge

import (
	"errors"
	"fmt"
)

// ErrMissingCapability reports a unit that lacks setup, next_input or
// parse_input.
var ErrMissingCapability = errors.New("missing capability")

// InitKind classifies initialization failures.
type InitKind uint8

const (
	KindRuntime  InitKind = iota // the runtime failed executing or calling the unit
	KindPath                     // the path could not be resolved to a module name
	KindRead                     // a file could not be read
	KindEncoding                 // a name or source is not valid text
)

func (k InitKind) String() string {
	switch k {
	case KindRuntime:
		return "runtime"
	case KindPath:
		return "path"
	case KindRead:
		return "read"
	case KindEncoding:
		return "encoding"
	default:
		return fmt.Sprintf("InitKind(%d)", k)
	}
}

// InitError is returned by New and NewWithInterface.
type InitError struct {
	Kind InitKind
	Path string
	Err  error
}

func (e *InitError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("bridge init (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("bridge init (%s) %s: %v", e.Kind, e.Path, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func initErr(kind InitKind, path string, err error) *InitError {
	return &InitError{Kind: kind, Path: path, Err: err}
}

// CallError is a failed generate or parse call.
type CallError struct {
	Op  string
	Err error
}

func (e *CallError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *CallError) Unwrap() error { return e.Err }

// IsInitKind reports whether err is an *InitError of kind k.
func IsInitKind(err error, k InitKind) bool {
	var ie *InitError
	return errors.As(err, &ie) && ie.Kind == k
}
