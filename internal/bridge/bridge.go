package bridge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gramfuzz/internal/trace"
)

// runtimeMu is held for every entry into an embedded runtime.
var runtimeMu sync.Mutex

//go:embed run_grammar.py
var defaultInterface string

// DefaultInterfaceName is the file name of the built-in interface unit.
const DefaultInterfaceName = "run_grammar.py"

// DefaultInterface returns the source of the built-in interface unit.
func DefaultInterface() string { return defaultInterface }

// Bridge owns a loaded interface unit and the grammar session its setup
// returned. It is created once per worker and never reconfigured.
type Bridge struct {
	rt      Runtime
	mod     Module
	session any
	unit    Unit
	grammar string
	tracer  trace.Tracer
	closed  bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTracer emits a call-scope span for every runtime entry.
func WithTracer(t trace.Tracer) Option {
	return func(b *Bridge) { b.tracer = t }
}

// New loads the built-in interface unit and sets up grammarFile.
func New(rt Runtime, grammarFile string, kwargs map[string]string, opts ...Option) (*Bridge, error) {
	unit := Unit{
		Path:     DefaultInterfaceName,
		FileName: DefaultInterfaceName,
		Name:     "run_grammar",
		Source:   defaultInterface,
	}
	return newBridge(rt, unit, grammarFile, kwargs, opts)
}

// NewWithInterface loads the interface unit at ifacePath instead of the
// built-in one.
func NewWithInterface(rt Runtime, ifacePath, grammarFile string, kwargs map[string]string, opts ...Option) (*Bridge, error) {
	abs, err := filepath.Abs(ifacePath)
	if err != nil {
		return nil, initErr(KindPath, ifacePath, err)
	}
	name, kind, err := moduleName(abs)
	if err != nil {
		return nil, initErr(kind, ifacePath, err)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, initErr(KindRead, ifacePath, err)
	}
	if !encodable(string(src)) {
		return nil, initErr(KindEncoding, ifacePath, errBadText)
	}
	unit := Unit{
		Path:     abs,
		FileName: filepath.Base(abs),
		Name:     name,
		Source:   string(src),
	}
	return newBridge(rt, unit, grammarFile, kwargs, opts)
}

func newBridge(rt Runtime, unit Unit, grammarFile string, kwargs map[string]string, opts []Option) (*Bridge, error) {
	b := &Bridge{rt: rt, unit: unit, tracer: trace.Nop}
	for _, opt := range opts {
		opt(b)
	}

	grammar, err := filepath.Abs(grammarFile)
	if err != nil {
		return nil, initErr(KindPath, grammarFile, err)
	}
	if !encodable(grammar) {
		return nil, initErr(KindEncoding, grammarFile, errBadText)
	}
	if _, err := os.Stat(grammar); err != nil {
		return nil, initErr(KindRead, grammarFile, err)
	}
	for k, v := range kwargs {
		if !encodable(k) || !encodable(v) {
			return nil, initErr(KindEncoding, "", fmt.Errorf("keyword %q: %w", k, errBadText))
		}
	}
	b.grammar = grammar

	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	span := trace.Begin(b.tracer, trace.ScopeCall, "setup", 0).
		WithExtra("unit", unit.Name).
		WithExtra("grammar", grammar)
	ns, err := rt.Exec(unit)
	if err != nil {
		span.End("exec failed")
		return nil, initErr(KindRuntime, unit.Path, err)
	}
	mod, err := Bind(ns)
	if err != nil {
		span.End("bind failed")
		return nil, initErr(KindRuntime, unit.Path, err)
	}
	session, err := mod.Setup(grammar, kwargs)
	if err != nil {
		span.End("setup failed")
		return nil, initErr(KindRuntime, grammarFile, err)
	}
	span.End("")

	b.mod = mod
	b.session = session
	return b, nil
}

// Unit returns the loaded interface unit.
func (b *Bridge) Unit() Unit { return b.unit }

// GrammarPath returns the absolute grammar file path.
func (b *Bridge) GrammarPath() string { return b.grammar }

// Generate returns the next input the grammar produces.
func (b *Bridge) Generate() ([]byte, error) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if b.closed {
		return nil, &CallError{Op: CapNextInput, Err: errClosed}
	}

	span := trace.Begin(b.tracer, trace.ScopeCall, CapNextInput, 0)
	out, err := b.mod.NextInput(b.session)
	if err != nil {
		span.End("error")
		return nil, &CallError{Op: CapNextInput, Err: err}
	}
	span.WithExtra("len", strconv.Itoa(len(out))).End("")
	return out, nil
}

// Parse returns how many distinct ways the grammar parses input.
func (b *Bridge) Parse(input []byte) (uint32, error) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if b.closed {
		return 0, &CallError{Op: CapParseInput, Err: errClosed}
	}

	span := trace.Begin(b.tracer, trace.ScopeCall, CapParseInput, 0)
	n, err := b.mod.ParseInput(b.session, input)
	if err != nil {
		span.End("error")
		return 0, &CallError{Op: CapParseInput, Err: err}
	}
	span.WithExtra("parses", strconv.FormatUint(uint64(n), 10)).End("")
	return n, nil
}

var errClosed = errors.New("bridge closed")

// Close releases the session. The runtime itself stays open; its owner
// closes it.
func (b *Bridge) Close() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if r, ok := b.session.(Releaser); ok {
		return r.Release()
	}
	return nil
}
