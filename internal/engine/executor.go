package engine

import "context"

// Executor runs the target on one input.
type Executor interface {
	RunTarget(ctx context.Context, state *State, input Input) (ExitKind, error)
	Observers() *Observers
}

// HarnessFunc is an in-process target.
type HarnessFunc func(input Input) ExitKind

// InProcessExecutor calls a harness function in the worker process. A harness
// panic is recovered and reported as ExitCrash together with a *PanicError;
// the fuzzer stores the input and then has the worker restarted.
type InProcessExecutor struct {
	harness   HarnessFunc
	observers *Observers
}

// NewInProcessExecutor wraps harness; obs are reset before every run.
func NewInProcessExecutor(harness HarnessFunc, obs ...Observer) *InProcessExecutor {
	return &InProcessExecutor{harness: harness, observers: NewObservers(obs...)}
}

func (e *InProcessExecutor) RunTarget(_ context.Context, _ *State, input Input) (exit ExitKind, err error) {
	e.observers.PreExecAll()
	defer func() {
		if r := recover(); r != nil {
			exit, err = ExitCrash, newPanicError(r)
		}
	}()
	return e.harness(input), nil
}

func (e *InProcessExecutor) Observers() *Observers { return e.observers }

// DiffExecutor runs a primary and a secondary executor on the same input.
// When their exit kinds differ the run reports ExitDiff.
type DiffExecutor struct {
	primary   Executor
	secondary Executor
	observers *Observers
}

// NewDiffExecutor combines two executors; extra observers are added to the
// merged observer set.
func NewDiffExecutor(primary, secondary Executor, extra ...Observer) *DiffExecutor {
	return &DiffExecutor{
		primary:   primary,
		secondary: secondary,
		observers: Merge(primary.Observers(), secondary.Observers(), NewObservers(extra...)),
	}
}

func (d *DiffExecutor) RunTarget(ctx context.Context, state *State, input Input) (ExitKind, error) {
	first, err := d.primary.RunTarget(ctx, state, input)
	if err != nil {
		return first, err
	}
	second, err := d.secondary.RunTarget(ctx, state, input)
	if err != nil {
		return second, err
	}
	if first != second {
		return ExitDiff, nil
	}
	return first, nil
}

func (d *DiffExecutor) Observers() *Observers { return d.observers }
