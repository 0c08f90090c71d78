package pyrt

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"gramfuzz/internal/bridge"
	"gramfuzz/internal/frame"
)

//go:embed host.py
var hostSource string

// EnvPython overrides the default interpreter.
const EnvPython = "GRAMFUZZ_PYTHON"

// DefaultPython is used when neither a flag nor EnvPython names one.
const DefaultPython = "python3"

// ErrClosed is returned for calls on a closed runtime.
var ErrClosed = errors.New("python runtime closed")

// Options configures Start.
type Options struct {
	// Python is the interpreter; see ResolvePython.
	Python string
	// Env is appended to the current environment.
	Env []string
	Dir string
	// Stderr receives the child's stderr, including anything the units
	// print. Defaults to os.Stderr.
	Stderr io.Writer
}

// ResolvePython picks the interpreter: explicit, then EnvPython, then
// DefaultPython.
func ResolvePython(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvPython); env != "" {
		return env
	}
	return DefaultPython
}

// Error is a Python exception raised inside the child.
type Error struct {
	// Kind is the exception class name.
	Kind    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("python %s: %s", e.Kind, e.Message) }

// Runtime is one interpreter child process.
type Runtime struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	closed bool
}

// Start launches the interpreter.
func Start(opts Options) (*Runtime, error) {
	python := ResolvePython(opts.Python)
	cmd := exec.Command(python, "-u", "-c", hostSource)
	cmd.Dir = opts.Dir
	cmd.Env = append(append(os.Environ(), opts.Env...), "PYTHONIOENCODING=utf-8")
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", python, err)
	}
	return &Runtime{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

func (r *Runtime) roundTrip(req *request) (wireValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return wireValue{}, ErrClosed
	}
	if err := frame.Write(r.stdin, req); err != nil {
		return wireValue{}, fmt.Errorf("python runtime %s: %w", req.Op, err)
	}
	var resp response
	if err := frame.Read(r.stdout, &resp, 0); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return wireValue{}, fmt.Errorf("python runtime exited during %s", req.Op)
		}
		return wireValue{}, fmt.Errorf("python runtime %s: %w", req.Op, err)
	}
	if !resp.OK {
		return wireValue{}, &Error{Kind: resp.Kind, Message: resp.Err}
	}
	return resp.Value, nil
}

// Exec runs unit as a fresh module and returns its namespace.
func (r *Runtime) Exec(unit bridge.Unit) (bridge.Namespace, error) {
	v, err := r.roundTrip(&request{
		Op:     opExec,
		Name:   unit.Name,
		Path:   unit.Path,
		File:   unit.FileName,
		Source: unit.Source,
	})
	if err != nil {
		return nil, err
	}
	if v.T != tagRef {
		return nil, fmt.Errorf("exec returned %q value, want a module reference", v.T)
	}
	return &namespace{module: &Ref{rt: r, id: v.R}}, nil
}

// Close asks the child to exit and waits for it.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	werr := frame.Write(r.stdin, &request{Op: opExit})
	cerr := r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("python runtime: %w", err)
	}
	if werr != nil {
		return werr
	}
	return cerr
}

// Ref is an object kept alive inside the child.
type Ref struct {
	rt *Runtime
	id uint64
}

// Release drops the child's reference.
func (ref *Ref) Release() error {
	_, err := ref.rt.roundTrip(&request{Op: opRelease, Ref: ref.id})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (ref *Ref) String() string { return fmt.Sprintf("pyrt.Ref(%d)", ref.id) }

type namespace struct {
	module *Ref
}

func (ns *namespace) Lookup(name string) (bridge.Func, error) {
	v, err := ns.module.rt.roundTrip(&request{Op: opLookup, Ref: ns.module.id, Name: name})
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) && pe.Kind == "NotFound" {
			return nil, fmt.Errorf("%w: %s", bridge.ErrNotFound, name)
		}
		return nil, err
	}
	if v.T != tagRef {
		return nil, fmt.Errorf("lookup %s returned %q value", name, v.T)
	}
	return &function{ref: &Ref{rt: ns.module.rt, id: v.R}}, nil
}

type function struct {
	ref *Ref
}

func (f *function) Call(args ...any) (any, error) {
	wire := make([]wireValue, 0, len(args))
	for i, a := range args {
		w, err := toWire(f.ref.rt, a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		wire = append(wire, w)
	}
	v, err := f.ref.rt.roundTrip(&request{Op: opCall, Ref: f.ref.id, Args: wire})
	if err != nil {
		return nil, err
	}
	return fromWire(f.ref.rt, v)
}

func toWire(rt *Runtime, v any) (wireValue, error) {
	switch x := v.(type) {
	case nil:
		return wireValue{T: tagNone}, nil
	case []byte:
		return wireValue{T: tagBytes, B: x}, nil
	case string:
		return wireValue{T: tagString, S: x}, nil
	case bool:
		return wireValue{T: tagBool, V: x}, nil
	case int:
		return wireValue{T: tagInt, I: int64(x)}, nil
	case int64:
		return wireValue{T: tagInt, I: x}, nil
	case map[string]string:
		return wireValue{T: tagMap, M: x}, nil
	case *Ref:
		if x.rt != rt {
			return wireValue{}, errors.New("reference belongs to another runtime")
		}
		return wireValue{T: tagRef, R: x.id}, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported type %T", v)
	}
}

func fromWire(rt *Runtime, w wireValue) (any, error) {
	switch w.T {
	case tagNone:
		return nil, nil
	case tagBytes:
		if w.B == nil {
			return []byte{}, nil
		}
		return w.B, nil
	case tagString:
		return w.S, nil
	case tagBool:
		return w.V, nil
	case tagInt:
		return w.I, nil
	case tagMap:
		return w.M, nil
	case tagRef:
		return &Ref{rt: rt, id: w.R}, nil
	default:
		return nil, fmt.Errorf("unknown value tag %q", w.T)
	}
}
