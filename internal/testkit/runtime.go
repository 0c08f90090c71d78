// Package testkit provides an in-process grammar runtime for tests: units
// are Go namespaces instead of interpreted source.
package testkit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gramfuzz/internal/bridge"
)

// Func adapts a Go function to bridge.Func.
type Func func(args ...any) (any, error)

func (f Func) Call(args ...any) (any, error) { return f(args...) }

// Namespace maps names to functions.
type Namespace map[string]bridge.Func

func (ns Namespace) Lookup(name string) (bridge.Func, error) {
	fn, ok := ns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bridge.ErrNotFound, name)
	}
	return fn, nil
}

// Runtime hands out one fixed namespace for every executed unit and records
// what it was asked to run. It tracks how many calls are inside it at once.
type Runtime struct {
	NS Namespace
	// ExecErr, when set, fails every Exec.
	ExecErr error
	// CallDelay stretches every call, making overlapping entries observable.
	CallDelay time.Duration

	mu       sync.Mutex
	executed []bridge.Unit
	closed   bool

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int64
}

func (r *Runtime) Exec(unit bridge.Unit) (bridge.Namespace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("runtime closed")
	}
	r.executed = append(r.executed, unit)
	if r.ExecErr != nil {
		return nil, r.ExecErr
	}
	guarded := make(Namespace, len(r.NS))
	for name, fn := range r.NS {
		guarded[name] = r.guard(fn)
	}
	return guarded, nil
}

func (r *Runtime) guard(fn bridge.Func) Func {
	return func(args ...any) (any, error) {
		n := r.active.Add(1)
		defer r.active.Add(-1)
		for {
			cur := r.maxActive.Load()
			if n <= cur || r.maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		r.calls.Add(1)
		if r.CallDelay > 0 {
			time.Sleep(r.CallDelay)
		}
		return fn.Call(args...)
	}
}

func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Executed returns the units run so far.
func (r *Runtime) Executed() []bridge.Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bridge.Unit(nil), r.executed...)
}

// MaxConcurrent is the largest number of calls observed inside the runtime
// at the same time.
func (r *Runtime) MaxConcurrent() int { return int(r.maxActive.Load()) }

// Calls is the number of calls made into the runtime.
func (r *Runtime) Calls() int64 { return r.calls.Load() }
