package testkit

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"testing"
)

// EvenSession is the session object the even-number grammar hands out.
type EvenSession struct {
	Grammar  string
	Kwargs   map[string]string
	rng      *rand.Rand
	released atomic.Bool
}

// Release marks the session released.
func (s *EvenSession) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return errors.New("session released twice")
	}
	return nil
}

// Released reports whether Release was called.
func (s *EvenSession) Released() bool { return s.released.Load() }

// IsEven is the reference answer of the even-number grammar: a non-empty run
// of ASCII digits whose last digit is even.
func IsEven(in []byte) bool {
	if len(in) == 0 {
		return false
	}
	for _, c := range in {
		if c < '0' || c > '9' {
			return false
		}
	}
	return (in[len(in)-1]-'0')%2 == 0
}

// EvenNumbers is a grammar module over decimal even numbers. It is
// unambiguous: every accepted input parses exactly one way.
func EvenNumbers(seed uint64) Namespace {
	return Namespace{
		"setup": Func(func(args ...any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("setup takes 2 arguments, got %d", len(args))
			}
			path, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("setup: grammar path is %T", args[0])
			}
			kwargs, _ := args[1].(map[string]string)
			return &EvenSession{
				Grammar: path,
				Kwargs:  kwargs,
				rng:     rand.New(rand.NewPCG(seed, seed+1)),
			}, nil
		}),
		"next_input": Func(func(args ...any) (any, error) {
			s, err := session(args, 1)
			if err != nil {
				return nil, err
			}
			n := s.rng.Uint64N(1<<40) * 2
			return []byte(strconv.FormatUint(n, 10)), nil
		}),
		"parse_input": Func(func(args ...any) (any, error) {
			if _, err := session(args, 2); err != nil {
				return nil, err
			}
			in, ok := args[1].([]byte)
			if !ok {
				return nil, fmt.Errorf("parse_input: input is %T", args[1])
			}
			if IsEven(in) {
				return int64(1), nil
			}
			return int64(0), nil
		}),
	}
}

func session(args []any, want int) (*EvenSession, error) {
	if len(args) != want {
		return nil, fmt.Errorf("want %d arguments, got %d", want, len(args))
	}
	s, ok := args[0].(*EvenSession)
	if !ok {
		return nil, fmt.Errorf("session is %T", args[0])
	}
	if s.Released() {
		return nil, errors.New("session used after release")
	}
	return s, nil
}

// Without returns a copy of ns lacking name.
func (ns Namespace) Without(name string) Namespace {
	out := make(Namespace, len(ns))
	for k, v := range ns {
		if k != name {
			out[k] = v
		}
	}
	return out
}

// With returns a copy of ns with name bound to fn.
func (ns Namespace) With(name string, fn Func) Namespace {
	out := make(Namespace, len(ns)+1)
	for k, v := range ns {
		out[k] = v
	}
	out[name] = fn
	return out
}

// GrammarFile writes a placeholder grammar file into a temp dir and returns its path.
func GrammarFile(t testing.TB) string {
	t.Helper()
	return writeFile(t, "even_numbers.fan", "<start> ::= <digit>* <even>\n<even> ::= \"0\" | \"2\" | \"4\" | \"6\" | \"8\"\n")
}
