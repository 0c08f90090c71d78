package harness

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/testkit"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"42", "42", true},
		{"+8", "8", true},
		{"0", "0", true},
		{"340282366920938463463374607431768211455", "340282366920938463463374607431768211455", true},
		{"0000000000000000000000000000000000000000000000000000000000042", "42", true},
		{"340282366920938463463374607431768211456", "", false},
		{"10000000000000000000000000000000000000000", "", false},
		{"", "", false},
		{"+", "", false},
		{"-4", "", false},
		{" 4", "", false},
		{"4a", "", false},
		{"1_000", "", false},
	}
	for _, tt := range tests {
		n, ok := ParseNumber(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseNumber(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && n.String() != tt.want {
			t.Errorf("ParseNumber(%q) = %s, want %s", tt.in, n, tt.want)
		}
	}
}

func TestChecker(t *testing.T) {
	check := Checker(Policy{})
	tests := []struct {
		in   string
		want engine.ExitKind
	}{
		{"42", engine.ExitOk},
		{"43", engine.ExitCrash},
		{"forty-two", engine.ExitCrash},
		{"\xff\xfe", engine.ExitCrash},
		{"10000000000000000000000000000000000000000", engine.ExitCrash},
		{"１２", engine.ExitCrash},
	}
	for _, tt := range tests {
		if got := check(engine.Input(tt.in)); got != tt.want {
			t.Errorf("Checker(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	normalized := Checker(Policy{Normalize: true})
	if got := normalized(engine.Input("１２")); got != engine.ExitOk {
		t.Errorf("normalized full-width 12 = %s, want ok", got)
	}
}

func TestViolentCrashPanicsOnlyOnMalformedInput(t *testing.T) {
	check := Checker(Policy{ViolentCrash: true})
	if got := check(engine.Input("7")); got != engine.ExitCrash {
		t.Fatalf("odd number = %s, want a controlled crash", got)
	}
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrViolentCrash) {
			t.Fatalf("recovered %v, want ErrViolentCrash", r)
		}
	}()
	check(engine.Input("x"))
	t.Fatal("malformed input did not panic")
}

func TestDumpWritesHexdump(t *testing.T) {
	var buf bytes.Buffer
	Checker(Policy{Dump: &buf})(engine.Input("42"))
	if !strings.Contains(buf.String(), "34 32") {
		t.Fatalf("hexdump = %q", buf.String())
	}
}

func TestDifferentialCoverageAndResult(t *testing.T) {
	tests := []struct {
		in     string
		result bool
		hits   []int
	}{
		{"42", true, []int{covEntry, covUTF8, covText, covNumber, covParsed, covEven}},
		{"41", false, []int{covEntry, covUTF8, covText, covNumber, covParsed, covOdd}},
		{"x", false, []int{covEntry, covUTF8, covText, covNotNumber}},
		{"\xff", false, []int{covEntry, covNotUTF8}},
		{"10000000000000000000000000000000000000000", false, []int{covEntry, covUTF8, covText, covNotNumber}},
	}
	for _, tt := range tests {
		d := NewDifferential(Policy{})
		exec := engine.NewInProcessExecutor(d.Run, d.Coverage, d.Result)
		exit, err := exec.RunTarget(t.Context(), nil, engine.Input(tt.in))
		if err != nil || exit != engine.ExitOk {
			t.Fatalf("%q: RunTarget = %s, %v", tt.in, exit, err)
		}
		if d.Result.Get() != tt.result {
			t.Errorf("%q: result = %v, want %v", tt.in, d.Result.Get(), tt.result)
		}
		want := make([]uint8, CoverageSize)
		for _, h := range tt.hits {
			want[h] = 1
		}
		if diff := cmp.Diff(want, d.Coverage.Map); diff != "" {
			t.Errorf("%q: coverage (-want +got):\n%s", tt.in, diff)
		}
	}
}

func FuzzCheckerAgreesWithGrammar(f *testing.F) {
	for _, seed := range []string{"42", "0", "1", "", "+2", "９", "99999999999999999999999999999999999998"} {
		f.Add([]byte(seed))
	}
	d := NewDifferential(Policy{})
	f.Fuzz(func(t *testing.T, in []byte) {
		d.Coverage.PreExec()
		if d.Run(in) != engine.ExitOk {
			t.Fatal("differential harness reported a failure")
		}
		// Without a sign and below 39 digits the harness and the grammar
		// accept the same language.
		if len(in) > 0 && len(in) < 39 && in[0] != '+' && d.Result.Get() != testkit.IsEven(in) {
			t.Fatalf("%q: harness=%v grammar=%v", in, d.Result.Get(), testkit.IsEven(in))
		}
	})
}

func TestDifferentialRejectsNumbersAboveU128(t *testing.T) {
	// 10^40 is even for the grammar but does not fit the harness.
	in := engine.Input("1" + strings.Repeat("0", 40))
	if !testkit.IsEven(in) {
		t.Fatalf("grammar rejects %q", in)
	}
	d := NewDifferential(Policy{})
	d.Run(in)
	if d.Result.Get() {
		t.Fatalf("harness accepted %q", in)
	}
}
