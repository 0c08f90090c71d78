// Package campaign assembles the example fuzzing campaigns around a grammar:
// which harness runs, which stages feed it and what counts as an objective.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/grammar"
	"gramfuzz/internal/harness"
	"gramfuzz/internal/oracle"
	"gramfuzz/internal/trace"
)

// Mode selects a campaign.
type Mode string

const (
	// ModeMutator replaces every scheduled input with a fresh grammar input.
	ModeMutator Mode = "mutator"
	// ModeStage havoc-mutates clones of each grammar input.
	ModeStage Mode = "stage"
	// ModeDifferential compares the native harness with the grammar parser.
	ModeDifferential Mode = "differential"
)

// ParseMode validates a --mode value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeMutator, ModeStage, ModeDifferential:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected mutator|stage|differential)", s)
	}
}

// Grammar is what a campaign needs from the bridge.
type Grammar interface {
	grammar.Source
	grammar.Parser
}

// Defaults of the stage campaign.
const (
	DefaultMinIterations = 25
	DefaultMaxIterations = 50
	// StageStackPow bounds the havoc stack applied to grammar inputs.
	StageStackPow = 3
	// DifferentialStackPow is the havoc stack of the differential campaign.
	DifferentialStackPow = 7
	// GrammarSlotName names the slot the parse executor writes.
	GrammarSlotName = "is_divisible_by_2_grammar"
)

// Seed is the single initial corpus entry of every campaign.
var Seed = engine.Input("42")

// Options configures Build.
type Options struct {
	Mode          Mode
	Grammar       Grammar
	MinIterations int
	MaxIterations int
	Policy        harness.Policy
	Tracer        trace.Tracer
}

// Campaign is a ready-to-run set of collaborators.
type Campaign struct {
	Mode      Mode
	Stages    []engine.Stage
	Executor  engine.Executor
	Feedback  engine.Feedback
	Objective engine.Feedback
}

// Build wires the campaign selected by opts.Mode.
func Build(opts Options) (*Campaign, error) {
	if opts.Grammar == nil {
		return nil, errors.New("campaign: no grammar")
	}
	switch opts.Mode {
	case ModeMutator:
		return &Campaign{
			Mode:     ModeMutator,
			Executor: engine.NewInProcessExecutor(harness.Checker(opts.Policy)),
			// One grammar call per target execution.
			Stages:    []engine.Stage{engine.NewStdMutationalStage(grammar.NewPseudoMutator(opts.Grammar), 1)},
			Objective: engine.CrashFeedback{},
		}, nil
	case ModeStage:
		minIter, maxIter := opts.MinIterations, opts.MaxIterations
		if minIter == 0 && maxIter == 0 {
			minIter, maxIter = DefaultMinIterations, DefaultMaxIterations
		}
		st, err := grammar.NewPostMutationalStage(opts.Grammar, engine.NewHavocMutator(StageStackPow), minIter, maxIter)
		if err != nil {
			return nil, err
		}
		return &Campaign{
			Mode:      ModeStage,
			Executor:  engine.NewInProcessExecutor(harness.Checker(opts.Policy)),
			Stages:    []engine.Stage{st},
			Objective: engine.CrashFeedback{},
		}, nil
	case ModeDifferential:
		return buildDifferential(opts)
	default:
		return nil, fmt.Errorf("campaign: unknown mode %q", opts.Mode)
	}
}

func buildDifferential(opts Options) (*Campaign, error) {
	native := harness.NewDifferential(opts.Policy)
	parsed := engine.NewSlot[uint32](GrammarSlotName)

	diff, err := oracle.NewDiffFeedback("result_diff_feedback", native.Result.Handle(), parsed.Handle(), oracle.AcceptanceMatches)
	if err != nil {
		return nil, err
	}
	diff.WithTracer(opts.Tracer)

	exec := engine.NewDiffExecutor(
		engine.NewInProcessExecutor(native.Run, native.Coverage, native.Result),
		grammar.NewParseExecutor(opts.Grammar, parsed),
	)
	return &Campaign{
		Mode:     ModeDifferential,
		Executor: exec,
		Stages: []engine.Stage{
			engine.NewStdMutationalStage(engine.NewHavocMutator(DifferentialStackPow), engine.DefaultMaxIterations),
		},
		Feedback: engine.NewMaxMapFeedback(harness.CoverageName),
		Objective: engine.OrFast(
			oracle.NewLogFeedback("grammar", parsed.Handle(), "harness", native.Result.Handle()),
			engine.DiffExitKindFeedback{},
			engine.CrashFeedback{},
			diff,
		),
	}, nil
}

// Fuzzer returns a fuzzer over the campaign's feedback and objective.
func (c *Campaign) Fuzzer() *engine.StdFuzzer {
	return engine.NewStdFuzzer(c.Feedback, c.Objective)
}

// SeedCorpus adds Seed to a fresh corpus without executing it. A state
// restored from a snapshot already has its corpus.
func SeedCorpus(state *engine.State) error {
	if state.Restored() || state.Corpus().Count() > 0 {
		return nil
	}
	_, err := state.Corpus().Add(&engine.Testcase{Input: Seed.Clone()})
	return err
}

// Run seeds the corpus and fuzzes for iters cycles, or until ctx is done
// when iters is 0. Like engine.StdFuzzer.FuzzLoop it ends with
// engine.ErrShuttingDown.
func (c *Campaign) Run(ctx context.Context, state *engine.State, mgr engine.EventManager, iters uint64) error {
	if err := SeedCorpus(state); err != nil {
		return err
	}
	return c.Fuzzer().FuzzLoop(ctx, c.Stages, c.Executor, state, mgr, iters)
}
