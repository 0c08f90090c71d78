package pyrt_test

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"gramfuzz/internal/bridge"
	"gramfuzz/internal/pyrt"
)

const evenUnit = `import random


class Session:
    def __init__(self, path, kwargs):
        self.rng = random.Random(int(kwargs.get("seed", "0")))
        self.path = path


def setup(path, kwargs):
    print("loading", path)
    return Session(path, kwargs)


def next_input(session):
    return str(session.rng.randrange(0, 10**12, 2)).encode()


def parse_input(session, data):
    text = bytes(data)
    ok = len(text) > 0 and text.isdigit() and int(text[-1:]) % 2 == 0
    return 1 if ok else 0
`

func startRuntime(t *testing.T) (*pyrt.Runtime, *bytes.Buffer) {
	t.Helper()
	python := pyrt.ResolvePython("")
	if _, err := exec.LookPath(python); err != nil {
		t.Skipf("no %s interpreter on PATH", python)
	}
	var stderr bytes.Buffer
	rt, err := pyrt.Start(pyrt.Options{Python: python, Stderr: &stderr})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := rt.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return rt, &stderr
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBridgeOverPython(t *testing.T) {
	rt, _ := startRuntime(t)
	iface := writeFile(t, "even_iface.py", evenUnit)
	grammar := writeFile(t, "even.fan", "<start> ::= <digit>* <even>\n")

	b, err := bridge.NewWithInterface(rt, iface, grammar, map[string]string{"seed": "7"})
	if err != nil {
		t.Fatalf("NewWithInterface: %v", err)
	}
	defer b.Close()

	for range 10 {
		in, err := b.Generate()
		if err != nil {
			t.Fatal(err)
		}
		n, err := b.Parse(in)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("%q can be parsed %d different ways, want 1", in, n)
		}
	}
	if n, err := b.Parse([]byte("1")); err != nil || n != 0 {
		t.Fatalf("Parse(1) = %d, %v", n, err)
	}
}

func TestPythonErrorsSurfaceAsInitErrors(t *testing.T) {
	grammar := writeFile(t, "even.fan", "<start> ::= \"0\"\n")
	tests := []struct {
		name    string
		source  string
		missing bool
		kind    string
	}{
		{name: "syntax", source: "def setup(:\n", kind: "SyntaxError"},
		{name: "import", source: "import module_that_does_not_exist\n", kind: "ModuleNotFoundError"},
		{name: "missing capability", source: "def setup(p, kw):\n    return None\n", missing: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, _ := startRuntime(t)
			iface := writeFile(t, "iface.py", tt.source)
			_, err := bridge.NewWithInterface(rt, iface, grammar, nil)
			if !bridge.IsInitKind(err, bridge.KindRuntime) {
				t.Fatalf("err = %v, want runtime init error", err)
			}
			if tt.missing {
				if !errors.Is(err, bridge.ErrMissingCapability) {
					t.Fatalf("err = %v, want ErrMissingCapability", err)
				}
				return
			}
			var pe *pyrt.Error
			if !errors.As(err, &pe) || pe.Kind != tt.kind {
				t.Fatalf("err = %v, want python %s", err, tt.kind)
			}
		})
	}
}

func TestUnitOutputGoesToStderr(t *testing.T) {
	rt, stderr := startRuntime(t)
	ns, err := rt.Exec(bridge.Unit{Path: "noisy.py", FileName: "noisy.py", Name: "noisy", Source: "print('noise')\ndef echo(x):\n    print('echo')\n    return x\n"})
	if err != nil {
		t.Fatal(err)
	}
	echo, err := ns.Lookup("echo")
	if err != nil {
		t.Fatal(err)
	}
	for _, arg := range []any{[]byte("ab"), "s", int64(-5), true, nil, map[string]string{"k": "v"}} {
		got, err := echo.Call(arg)
		if err != nil {
			t.Fatalf("echo(%v): %v", arg, err)
		}
		if m, ok := arg.(map[string]string); ok {
			if _, isRef := got.(*pyrt.Ref); !isRef || len(m) != 1 {
				t.Fatalf("echo(map) = %T, want an opaque reference", got)
			}
			continue
		}
		if !equalValue(arg, got) {
			t.Fatalf("echo(%#v) = %#v", arg, got)
		}
	}
	if _, err := ns.Lookup("absent"); !errors.Is(err, bridge.ErrNotFound) {
		t.Fatalf("Lookup(absent) = %v, want ErrNotFound", err)
	}
	// Close waits for the child, so its stderr has been copied.
	if err := rt.Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("noise")) {
		t.Fatalf("unit output not on stderr: %q", stderr.String())
	}
}

func equalValue(want, got any) bool {
	if w, ok := want.([]byte); ok {
		g, ok := got.([]byte)
		return ok && bytes.Equal(w, g)
	}
	return want == got
}
