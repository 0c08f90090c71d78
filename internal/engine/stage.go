package engine

import "context"

// Stage is one step of a fuzzing cycle on the current testcase.
type Stage interface {
	Name() string
	Perform(ctx context.Context, fuzzer Evaluator, exec Executor, state *State, mgr EventManager) error
}

// Restartable stages keep retry bookkeeping so that a testcase that keeps
// killing the worker is eventually skipped.
type Restartable interface {
	ShouldRestart(state *State) (bool, error)
	ClearProgress(state *State) error
}

// StdMutationalStage mutates a copy of the current testcase between 1 and
// maxIterations times and evaluates every mutant.
type StdMutationalStage struct {
	mutator       Mutator
	maxIterations int
}

// DefaultMaxIterations matches the usual havoc schedule.
const DefaultMaxIterations = 128

// NewStdMutationalStage returns a stage running mutator.
func NewStdMutationalStage(mutator Mutator, maxIterations int) *StdMutationalStage {
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}
	return &StdMutationalStage{mutator: mutator, maxIterations: maxIterations}
}

func (s *StdMutationalStage) Name() string { return "StdMutationalStage" }

func (s *StdMutationalStage) Perform(ctx context.Context, fuzzer Evaluator, exec Executor, state *State, mgr EventManager) error {
	id, ok := state.CurrentCorpusID()
	if !ok {
		return IllegalState("%s has no current testcase", s.Name())
	}
	tc, ok := state.Corpus().Get(id)
	if !ok {
		return IllegalState("%s: testcase %d not in corpus", s.Name(), id)
	}

	iterations := 1 + state.Rand().Below(s.maxIterations)
	for range iterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		input := tc.Input.Clone()
		res, err := s.mutator.Mutate(state, &input)
		if err != nil {
			return err
		}
		if res == Skipped {
			continue
		}
		_, corpusID, err := fuzzer.EvaluateInput(ctx, state, exec, mgr, input)
		if err != nil {
			return err
		}
		if err := s.mutator.PostExec(state, corpusID); err != nil {
			return err
		}
	}
	return nil
}

func (s *StdMutationalStage) ShouldRestart(state *State) (bool, error) {
	return ShouldRestart(state, s.Name(), DefaultRetryCap)
}

func (s *StdMutationalStage) ClearProgress(state *State) error {
	return ClearProgress(state, s.Name())
}
