package engine

import (
	"context"
	"errors"
	"fmt"

	"gramfuzz/internal/trace"
)

// ExecuteResult says where an evaluated input ended up.
type ExecuteResult struct {
	Exit     ExitKind
	Corpus   bool
	Solution bool
}

// Evaluator runs an input and files it according to its feedbacks.
type Evaluator interface {
	EvaluateInput(ctx context.Context, state *State, exec Executor, mgr EventManager, input Input) (ExecuteResult, *CorpusID, error)
}

// StdFuzzer checks the objective first and the feedback second: an input is
// either a solution, a new corpus entry, or dropped.
type StdFuzzer struct {
	feedback  Feedback
	objective Feedback
}

// NewStdFuzzer builds a fuzzer; nil feedbacks never report anything.
func NewStdFuzzer(feedback, objective Feedback) *StdFuzzer {
	if feedback == nil {
		feedback = noFeedback{}
	}
	if objective == nil {
		objective = noFeedback{}
	}
	return &StdFuzzer{feedback: feedback, objective: objective}
}

// EvaluateInput executes input once. A recovered harness panic is filed like
// any crash, then the state is saved and the *PanicError returned so the
// worker restarts.
func (f *StdFuzzer) EvaluateInput(ctx context.Context, state *State, exec Executor, mgr EventManager, input Input) (ExecuteResult, *CorpusID, error) {
	exit, runErr := exec.RunTarget(ctx, state, input)
	state.addExecution()

	var perr *PanicError
	if runErr != nil && !errors.As(runErr, &perr) {
		return ExecuteResult{}, nil, runErr
	}

	res := ExecuteResult{Exit: exit}
	obs := exec.Observers()

	solution, err := f.objective.IsInteresting(state, input, obs, exit)
	if err != nil {
		return res, nil, err
	}
	if solution {
		tc := &Testcase{Input: input.Clone()}
		if err := f.objective.AppendMetadata(state, obs, tc); err != nil {
			return res, nil, err
		}
		tc.AddMetadata("exit", exit.String())
		if perr != nil {
			tc.AddMetadata("panic", fmt.Sprint(perr.Value))
		}
		if _, err := state.Solutions().Add(tc); err != nil {
			return res, nil, err
		}
		res.Solution = true
		trace.Pointf(trace.FromContext(ctx), trace.ScopeWorker, "objective", "%s exit=%s", input.Name(), exit)

		ev := NewEvent(EventObjective, state)
		ev.Exit = exit
		ev.Input = tc.Input
		if err := mgr.Fire(ctx, ev); err != nil {
			return res, nil, err
		}
	}

	if perr != nil {
		if err := state.Save(); err != nil {
			return res, nil, errors.Join(perr, err)
		}
		return res, nil, perr
	}
	if solution {
		return res, nil, nil
	}

	interesting, err := f.feedback.IsInteresting(state, input, obs, exit)
	if err != nil || !interesting {
		return res, nil, err
	}
	tc := &Testcase{Input: input.Clone()}
	if err := f.feedback.AppendMetadata(state, obs, tc); err != nil {
		return res, nil, err
	}
	id, err := state.Corpus().Add(tc)
	if err != nil {
		return res, nil, err
	}
	res.Corpus = true

	ev := NewEvent(EventNewTestcase, state)
	ev.Exit = exit
	ev.Input = tc.Input
	if err := mgr.Fire(ctx, ev); err != nil {
		return res, nil, err
	}
	return res, &id, nil
}

// AddInput executes input and adds it to the corpus whatever the feedback
// says, unless the objective claimed it.
func (f *StdFuzzer) AddInput(ctx context.Context, state *State, exec Executor, mgr EventManager, input Input) (CorpusID, error) {
	res, id, err := f.EvaluateInput(ctx, state, exec, mgr, input)
	if err != nil {
		return 0, err
	}
	if id != nil {
		return *id, nil
	}
	if res.Solution {
		return 0, IllegalState("initial input %s is already a solution", input.Name())
	}
	newID, err := state.Corpus().Add(&Testcase{Input: input.Clone()})
	if err != nil {
		return 0, err
	}
	ev := NewEvent(EventNewTestcase, state)
	ev.Input = input
	return newID, mgr.Fire(ctx, ev)
}

// GenerateInitialInputs adds n generated inputs to the corpus.
func (f *StdFuzzer) GenerateInitialInputs(ctx context.Context, state *State, exec Executor, mgr EventManager, gen Generator, n int) error {
	for i := range n {
		input, err := gen.Generate(state)
		if err != nil {
			return fmt.Errorf("generate initial input %d: %w", i, err)
		}
		if _, err := f.AddInput(ctx, state, exec, mgr, input); err != nil {
			return fmt.Errorf("add initial input %d: %w", i, err)
		}
	}
	return nil
}

// FuzzOne runs every stage once on one testcase. A worker restored from a
// snapshot resumes the testcase it died on, and restartable stages consult
// their retry bookkeeping before running.
func (f *StdFuzzer) FuzzOne(ctx context.Context, stages []Stage, exec Executor, state *State, mgr EventManager) error {
	tracer := trace.FromContext(ctx)
	if _, ok := state.CurrentCorpusID(); !ok {
		id, err := state.Corpus().Next()
		if err != nil {
			return err
		}
		state.SetCurrentCorpusID(id)
	}
	id, _ := state.CurrentCorpusID()
	span := trace.Begin(tracer, trace.ScopeWorker, "fuzz_one", 0).
		WithExtra("testcase", fmt.Sprint(id))

	restartable := false
	for _, st := range stages {
		run := true
		r, isRestartable := st.(Restartable)
		if isRestartable {
			restartable = true
			var err error
			if run, err = r.ShouldRestart(state); err != nil {
				span.End("error")
				return err
			}
			if err := state.Save(); err != nil {
				span.End("error")
				return err
			}
			if !run {
				trace.Pointf(tracer, trace.ScopeStage, "skip", "%s skips testcase %d", st.Name(), id)
			}
		}
		if run {
			stageSpan := trace.Begin(tracer, trace.ScopeStage, st.Name(), span.ID())
			err := st.Perform(ctx, f, exec, state, mgr)
			if err != nil {
				stageSpan.End(err.Error())
				span.End("error")
				return err
			}
			stageSpan.End("")
		}
		if isRestartable {
			if err := r.ClearProgress(state); err != nil {
				span.End("error")
				return err
			}
		}
	}
	state.ClearCurrentCorpusID()
	if restartable {
		if err := state.Save(); err != nil {
			span.End("error")
			return err
		}
	}
	span.End("")
	return mgr.Process(ctx, state)
}

// FuzzLoop calls FuzzOne iters times, or until ctx is done when iters is 0.
// A finished loop returns ErrShuttingDown.
func (f *StdFuzzer) FuzzLoop(ctx context.Context, stages []Stage, exec Executor, state *State, mgr EventManager, iters uint64) error {
	for i := uint64(0); iters == 0 || i < iters; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := f.FuzzOne(ctx, stages, exec, state, mgr); err != nil {
			return err
		}
	}
	if err := mgr.OnShutdown(); err != nil {
		return err
	}
	return ErrShuttingDown
}
