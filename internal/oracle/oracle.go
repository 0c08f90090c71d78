// Package oracle compares two observations of the same input and turns a
// disagreement into an objective.
package oracle

import (
	"fmt"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/trace"
)

// Verdict is the outcome of comparing two observations.
type Verdict uint8

const (
	Equal Verdict = iota
	Diff
)

func (v Verdict) String() string {
	if v == Diff {
		return "diff"
	}
	return "equal"
}

// Compare classifies a pair of observations.
type Compare[A, B any] func(a A, b B) Verdict

// AcceptanceMatches compares a harness decision with a grammar parse count:
// the grammar accepts when it finds at least one parse.
func AcceptanceMatches(harness bool, parses uint32) Verdict {
	if harness == (parses != 0) {
		return Equal
	}
	return Diff
}

// DiffFeedback reads two slots after every run and is interesting when
// compare reports Diff.
type DiffFeedback[A, B any] struct {
	name    string
	first   engine.Handle[A]
	second  engine.Handle[B]
	compare Compare[A, B]
	tracer  trace.Tracer
}

// NewDiffFeedback compares the slots first and second.
func NewDiffFeedback[A, B any](name string, first engine.Handle[A], second engine.Handle[B], compare Compare[A, B]) (*DiffFeedback[A, B], error) {
	if first.Name() == second.Name() {
		return nil, fmt.Errorf("diff feedback %s: both observers are named %q", name, first.Name())
	}
	if compare == nil {
		return nil, fmt.Errorf("diff feedback %s: nil compare", name)
	}
	return &DiffFeedback[A, B]{
		name:    name,
		first:   first,
		second:  second,
		compare: compare,
		tracer:  trace.Nop,
	}, nil
}

// WithTracer reports every Diff as an error point.
func (f *DiffFeedback[A, B]) WithTracer(t trace.Tracer) *DiffFeedback[A, B] {
	if t != nil {
		f.tracer = t
	}
	return f
}

func (f *DiffFeedback[A, B]) Name() string { return f.name }

// Classify compares the current values of both slots.
func (f *DiffFeedback[A, B]) Classify(obs *engine.Observers) (Verdict, error) {
	a, err := engine.Get(obs, f.first)
	if err != nil {
		return Equal, err
	}
	b, err := engine.Get(obs, f.second)
	if err != nil {
		return Equal, err
	}
	v := f.compare(a.Get(), b.Get())
	if v == Diff {
		trace.Errorf(f.tracer, trace.ScopeWorker, "diff", "%s=%v != %s=%v", f.first.Name(), a.Get(), f.second.Name(), b.Get())
	}
	return v, nil
}

func (f *DiffFeedback[A, B]) IsInteresting(_ *engine.State, _ engine.Input, obs *engine.Observers, _ engine.ExitKind) (bool, error) {
	v, err := f.Classify(obs)
	return v == Diff, err
}

func (f *DiffFeedback[A, B]) AppendMetadata(*engine.State, *engine.Observers, *engine.Testcase) error {
	return nil
}

// LogFeedback never finds anything interesting; it attaches the values of
// two slots to every testcase stored through the feedback it belongs to.
type LogFeedback[A, B any] struct {
	keyA string
	a    engine.Handle[A]
	keyB string
	b    engine.Handle[B]
}

// NewLogFeedback records slot a under keyA and slot b under keyB.
func NewLogFeedback[A, B any](keyA string, a engine.Handle[A], keyB string, b engine.Handle[B]) *LogFeedback[A, B] {
	return &LogFeedback[A, B]{keyA: keyA, a: a, keyB: keyB, b: b}
}

func (f *LogFeedback[A, B]) Name() string { return "LogFeedback" }

func (f *LogFeedback[A, B]) IsInteresting(*engine.State, engine.Input, *engine.Observers, engine.ExitKind) (bool, error) {
	return false, nil
}

func (f *LogFeedback[A, B]) AppendMetadata(_ *engine.State, obs *engine.Observers, tc *engine.Testcase) error {
	a, err := engine.Get(obs, f.a)
	if err != nil {
		return err
	}
	b, err := engine.Get(obs, f.b)
	if err != nil {
		return err
	}
	tc.AddMetadata(f.keyA, a.Get())
	tc.AddMetadata(f.keyB, b.Get())
	return nil
}
