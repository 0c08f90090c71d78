package grammar

import (
	"context"
	"fmt"

	"gramfuzz/internal/engine"
)

// Source produces grammar inputs. *bridge.Bridge implements it.
type Source interface {
	Generate() ([]byte, error)
}

// Parser counts grammar parses. *bridge.Bridge implements it.
type Parser interface {
	Parse(input []byte) (uint32, error)
}

func illegal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", engine.ErrIllegalState, op, err)
}

// Generator is an engine.Generator backed by the grammar.
type Generator struct {
	src Source
}

// NewGenerator wraps src.
func NewGenerator(src Source) *Generator { return &Generator{src: src} }

func (g *Generator) Generate(*engine.State) (engine.Input, error) {
	out, err := g.src.Generate()
	if err != nil {
		return nil, illegal("generate", err)
	}
	return engine.Input(out), nil
}

// PseudoMutator replaces its input with a fresh grammar input. The previous
// content is discarded, not edited.
type PseudoMutator struct {
	src Source
}

// NewPseudoMutator wraps src.
func NewPseudoMutator(src Source) *PseudoMutator { return &PseudoMutator{src: src} }

func (m *PseudoMutator) Name() string { return "PseudoMutator" }

func (m *PseudoMutator) Mutate(_ *engine.State, input *engine.Input) (engine.MutationResult, error) {
	out, err := m.src.Generate()
	if err != nil {
		return engine.Skipped, illegal("generate", err)
	}
	*input = engine.Input(out)
	return engine.Mutated, nil
}

func (m *PseudoMutator) PostExec(*engine.State, *engine.CorpusID) error { return nil }

// ParseExecutor runs the grammar parser as the target and stores the parse
// count in a uint32 slot. It always reports ExitOk; judging the count is left
// to feedbacks.
type ParseExecutor struct {
	parser    Parser
	handle    engine.Handle[uint32]
	observers *engine.Observers
}

// NewParseExecutor writes parse counts into slot.
func NewParseExecutor(p Parser, slot *engine.Slot[uint32]) *ParseExecutor {
	return NewParseExecutorWithObservers(p, slot.Handle(), slot)
}

// NewParseExecutorWithObservers writes parse counts into the slot h names,
// which must be among obs.
func NewParseExecutorWithObservers(p Parser, h engine.Handle[uint32], obs ...engine.Observer) *ParseExecutor {
	return &ParseExecutor{parser: p, handle: h, observers: engine.NewObservers(obs...)}
}

func (e *ParseExecutor) RunTarget(_ context.Context, _ *engine.State, input engine.Input) (engine.ExitKind, error) {
	slot, err := engine.Get(e.observers, e.handle)
	if err != nil {
		return engine.ExitOk, err
	}
	e.observers.PreExecAll()
	n, err := e.parser.Parse(input)
	if err != nil {
		return engine.ExitOk, illegal("parse", err)
	}
	slot.Set(n)
	return engine.ExitOk, nil
}

func (e *ParseExecutor) Observers() *engine.Observers { return e.observers }
