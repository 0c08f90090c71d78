package grammar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gramfuzz/internal/engine"
)

type counterSource struct {
	n   int
	err error
}

func (s *counterSource) Generate() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.n++
	return []byte(fmt.Sprintf("%d", s.n*2)), nil
}

type lenParser struct {
	err error
}

func (p lenParser) Parse(in []byte) (uint32, error) {
	if p.err != nil {
		return 0, p.err
	}
	return uint32(len(in)), nil
}

// pinnedRand always draws the same end of a range.
type pinnedRand struct {
	high bool
}

func (r pinnedRand) Below(n int) int {
	if r.high && n > 0 {
		return n - 1
	}
	return 0
}

func (r pinnedRand) Between(lo, hi int) int {
	if r.high && hi >= lo {
		return hi
	}
	return lo
}

func (r pinnedRand) Uint64() uint64 { return 0 }

type recordingEvaluator struct {
	inputs []string
}

func (e *recordingEvaluator) EvaluateInput(_ context.Context, _ *engine.State, _ engine.Executor, _ engine.EventManager, in engine.Input) (engine.ExecuteResult, *engine.CorpusID, error) {
	e.inputs = append(e.inputs, string(in))
	return engine.ExecuteResult{}, nil, nil
}

type appendMutator struct {
	calls     int
	postExecs int
	skipEvery int
}

func (m *appendMutator) Name() string { return "append" }

func (m *appendMutator) Mutate(_ *engine.State, in *engine.Input) (engine.MutationResult, error) {
	m.calls++
	if m.skipEvery > 0 && m.calls%m.skipEvery == 0 {
		return engine.Skipped, nil
	}
	*in = append(*in, 'x')
	return engine.Mutated, nil
}

func (m *appendMutator) PostExec(*engine.State, *engine.CorpusID) error {
	m.postExecs++
	return nil
}

func newState(t *testing.T, r engine.Rand) *engine.State {
	t.Helper()
	s, err := engine.NewState(engine.StateConfig{Rand: r})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func performOnce(t *testing.T, r engine.Rand, mut *appendMutator) *recordingEvaluator {
	t.Helper()
	stage, err := NewPostMutationalStage(&counterSource{}, mut, 25, 50)
	if err != nil {
		t.Fatal(err)
	}
	ev := &recordingEvaluator{}
	if err := stage.Perform(context.Background(), ev, nil, newState(t, r), engine.NewLocalEventManager(nil)); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	return ev
}

func TestPostMutationalStageIterationBounds(t *testing.T) {
	rands := []engine.Rand{pinnedRand{}, pinnedRand{high: true}}
	for seed := range uint64(64) {
		rands = append(rands, engine.NewStdRand(seed))
	}
	for i, r := range rands {
		mut := &appendMutator{}
		ev := performOnce(t, r, mut)
		mutants := len(ev.inputs) - 1
		if mutants < 26 || mutants > 51 {
			t.Fatalf("rand #%d: %d mutant evaluations, want 26..51", i, mutants)
		}
		if mut.postExecs != len(ev.inputs) {
			t.Fatalf("rand #%d: %d post-exec hooks for %d evaluations", i, mut.postExecs, len(ev.inputs))
		}
	}

	if got := len(performOnce(t, pinnedRand{}, &appendMutator{}).inputs) - 1; got != 26 {
		t.Errorf("lowest draw: %d mutants, want 26", got)
	}
	if got := len(performOnce(t, pinnedRand{high: true}, &appendMutator{}).inputs) - 1; got != 51 {
		t.Errorf("highest draw: %d mutants, want 51", got)
	}
}

func TestPostMutationalStageMutatesFreshClones(t *testing.T) {
	ev := performOnce(t, pinnedRand{}, &appendMutator{})
	if ev.inputs[0] != "2" {
		t.Fatalf("seed = %q, want the first grammar input", ev.inputs[0])
	}
	for i, in := range ev.inputs[1:] {
		if in != "2x" {
			t.Fatalf("mutant %d = %q, want a single mutation of the seed", i, in)
		}
	}
}

func TestPostMutationalStageSkipsWithoutReplacement(t *testing.T) {
	mut := &appendMutator{skipEvery: 3}
	ev := performOnce(t, pinnedRand{}, mut)
	if mut.calls != 26 {
		t.Fatalf("mutator called %d times, want 26", mut.calls)
	}
	skipped := mut.calls / 3
	if got, want := len(ev.inputs), 1+mut.calls-skipped; got != want {
		t.Fatalf("%d evaluations, want %d (seed + %d mutants - %d skipped)", got, want, mut.calls, skipped)
	}
}

func TestPostMutationalStageErrors(t *testing.T) {
	if _, err := NewPostMutationalStage(&counterSource{}, &appendMutator{}, 5, 4); err == nil {
		t.Fatal("accepted max < min")
	}
	stage, err := NewPostMutationalStage(&counterSource{err: errors.New("generator exhausted")}, &appendMutator{}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	err = stage.Perform(context.Background(), &recordingEvaluator{}, nil, newState(t, pinnedRand{}), engine.NewLocalEventManager(nil))
	if !errors.Is(err, engine.ErrIllegalState) || !strings.Contains(err.Error(), "generator exhausted") {
		t.Fatalf("err = %v, want illegal state carrying the bridge error", err)
	}
}

func TestPostMutationalStageRetryCap(t *testing.T) {
	stage, err := NewPostMutationalStage(&counterSource{}, &appendMutator{}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	s := newState(t, pinnedRand{})
	s.SetCurrentCorpusID(0)
	for i := range 3 {
		ok, err := stage.ShouldRestart(s)
		if err != nil || !ok {
			t.Fatalf("restart %d: %v, %v", i, ok, err)
		}
	}
	if ok, err := stage.ShouldRestart(s); err != nil || ok {
		t.Fatalf("after 3 restarts ShouldRestart = %v, %v; want false", ok, err)
	}
	if err := stage.ClearProgress(s); err != nil {
		t.Fatal(err)
	}
}

func TestPseudoMutatorReplacesInput(t *testing.T) {
	src := &counterSource{}
	m := NewPseudoMutator(src)
	s := newState(t, pinnedRand{})
	for _, before := range []string{"", "2", "not a number at all", "2"} {
		in := engine.Input(before)
		res, err := m.Mutate(s, &in)
		if err != nil || res != engine.Mutated {
			t.Fatalf("Mutate(%q) = %s, %v", before, res, err)
		}
		if want := fmt.Sprintf("%d", src.n*2); string(in) != want {
			t.Fatalf("Mutate(%q) left %q, want fresh grammar input %q", before, in, want)
		}
	}

	failing := NewPseudoMutator(&counterSource{err: errors.New("boom")})
	in := engine.Input("keep")
	if _, err := failing.Mutate(s, &in); !errors.Is(err, engine.ErrIllegalState) {
		t.Fatalf("err = %v, want ErrIllegalState", err)
	}
}

func TestGenerator(t *testing.T) {
	g := NewGenerator(&counterSource{})
	in, err := g.Generate(nil)
	if err != nil || string(in) != "2" {
		t.Fatalf("Generate = %q, %v", in, err)
	}
}

func TestParseExecutorWritesSlot(t *testing.T) {
	slot := engine.NewSlot[uint32]("is_divisible_by_2_grammar")
	exec := NewParseExecutor(lenParser{}, slot)

	exit, err := exec.RunTarget(context.Background(), nil, engine.Input("1234"))
	if err != nil || exit != engine.ExitOk {
		t.Fatalf("RunTarget = %s, %v", exit, err)
	}
	if slot.Get() != 4 {
		t.Fatalf("slot = %d, want 4", slot.Get())
	}
}

func TestParseExecutorErrors(t *testing.T) {
	other := engine.NewSlot[bool]("other")
	missing := NewParseExecutorWithObservers(lenParser{}, engine.NewHandle[uint32]("absent"), other)
	if _, err := missing.RunTarget(context.Background(), nil, engine.Input("2")); !errors.Is(err, engine.ErrIllegalState) {
		t.Fatalf("missing slot: err = %v, want ErrIllegalState", err)
	}
	mistyped := NewParseExecutorWithObservers(lenParser{}, engine.NewHandle[uint32]("other"), other)
	if _, err := mistyped.RunTarget(context.Background(), nil, engine.Input("2")); !errors.Is(err, engine.ErrIllegalState) {
		t.Fatalf("mistyped slot: err = %v, want ErrIllegalState", err)
	}

	parseErr := errors.New("parser crashed")
	failing := NewParseExecutor(lenParser{err: parseErr}, engine.NewSlot[uint32]("n"))
	exit, err := failing.RunTarget(context.Background(), nil, engine.Input("2"))
	if !errors.Is(err, engine.ErrIllegalState) || !errors.Is(err, parseErr) {
		t.Fatalf("parse failure: err = %v", err)
	}
	if exit != engine.ExitOk {
		t.Fatalf("exit = %s, want ok", exit)
	}
}
