package bridge

import "errors"

// ErrNotFound is returned by Namespace.Lookup for an undefined name.
var ErrNotFound = errors.New("name not found")

// Unit is a source unit executed once as a module.
type Unit struct {
	// Path is where the source was read from; used in tracebacks.
	Path string
	// FileName is the base name of Path.
	FileName string
	// Name is the module name the unit is registered under.
	Name   string
	Source string
}

// Runtime is an embedded interpreter. Implementations need not be safe for
// concurrent use; the bridge serializes every call.
type Runtime interface {
	// Exec compiles and executes unit and returns its global namespace.
	Exec(unit Unit) (Namespace, error)
	Close() error
}

// Namespace resolves module-level names.
type Namespace interface {
	Lookup(name string) (Func, error)
}

// Func is a callable inside the runtime. Arguments and results are plain Go
// values (string, []byte, integers, map[string]string) or opaque handles a
// previous call returned.
type Func interface {
	Call(args ...any) (any, error)
}

// Releaser is implemented by opaque handles that pin runtime objects.
type Releaser interface {
	Release() error
}
