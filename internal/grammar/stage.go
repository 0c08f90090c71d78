package grammar

import (
	"context"
	"fmt"

	"gramfuzz/internal/engine"
)

// PostMutationalStage draws a fresh grammar seed every cycle, evaluates it,
// then evaluates 1+n mutated clones of it, n drawn from [min, max].
type PostMutationalStage struct {
	src           Source
	mutator       engine.Mutator
	minIterations int
	maxIterations int
}

// StageName is the name retry bookkeeping is kept under.
const StageName = "PostMutationalStage"

// NewPostMutationalStage builds the stage. Bounds are inclusive.
func NewPostMutationalStage(src Source, mutator engine.Mutator, minIterations, maxIterations int) (*PostMutationalStage, error) {
	if minIterations < 0 || maxIterations < minIterations {
		return nil, fmt.Errorf("invalid iteration bounds [%d, %d]", minIterations, maxIterations)
	}
	return &PostMutationalStage{
		src:           src,
		mutator:       mutator,
		minIterations: minIterations,
		maxIterations: maxIterations,
	}, nil
}

func (s *PostMutationalStage) Name() string { return StageName }

func (s *PostMutationalStage) Perform(ctx context.Context, fuzzer engine.Evaluator, exec engine.Executor, state *engine.State, mgr engine.EventManager) error {
	out, err := s.src.Generate()
	if err != nil {
		return illegal("generate", err)
	}
	seed := engine.Input(out)

	// Fixed for this cycle.
	iterations := 1 + state.Rand().Between(s.minIterations, s.maxIterations)

	_, id, err := fuzzer.EvaluateInput(ctx, state, exec, mgr, seed)
	if err != nil {
		return err
	}
	if err := s.mutator.PostExec(state, id); err != nil {
		return err
	}

	for range iterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		input := seed.Clone()
		res, err := s.mutator.Mutate(state, &input)
		if err != nil {
			return err
		}
		if res == engine.Skipped {
			continue
		}
		_, id, err := fuzzer.EvaluateInput(ctx, state, exec, mgr, input)
		if err != nil {
			return err
		}
		if err := s.mutator.PostExec(state, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostMutationalStage) ShouldRestart(state *engine.State) (bool, error) {
	return engine.ShouldRestart(state, StageName, engine.DefaultRetryCap)
}

func (s *PostMutationalStage) ClearProgress(state *engine.State) error {
	return engine.ClearProgress(state, StageName)
}
