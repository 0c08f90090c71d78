package bridge

import (
	"errors"
	"strings"
	"testing"

	"fortio.org/safecast"
)

func TestModuleName(t *testing.T) {
	tests := []struct {
		path string
		want string
		kind InitKind
		ok   bool
	}{
		{path: "/srv/grammars/run_grammar.py", want: "run_grammar", ok: true},
		{path: "run.py", want: "run", ok: true},
		{path: "/srv/grammars/evenpkg/__init__.py", want: "evenpkg", ok: true},
		{path: "/srv/grammars/run.txt", kind: KindPath},
		{path: "/srv/grammars/.py", kind: KindPath},
		{path: "/srv/grammars/noext", kind: KindPath},
		{path: "/srv/bad\x00name.py", kind: KindEncoding},
		{path: "/srv/bad\xffname.py", kind: KindEncoding},
		{path: "/srv/pkg\x00/__init__.py", kind: KindEncoding},
	}
	for _, tt := range tests {
		got, kind, err := moduleName(tt.path)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("moduleName(%q) = %q, %v; want %q", tt.path, got, err, tt.want)
			}
			continue
		}
		if err == nil {
			t.Errorf("moduleName(%q) = %q, want %s error", tt.path, got, tt.kind)
			continue
		}
		if kind != tt.kind {
			t.Errorf("moduleName(%q) kind = %s, want %s", tt.path, kind, tt.kind)
		}
	}
}

func TestToCount(t *testing.T) {
	tests := []struct {
		in      any
		want    uint32
		wantErr bool
	}{
		{in: int64(0), want: 0},
		{in: int64(1), want: 1},
		{in: uint64(7), want: 7},
		{in: int(3), want: 3},
		{in: int32(2), want: 2},
		{in: int64(-1), wantErr: true},
		{in: int64(1 << 40), wantErr: true},
		{in: "1", wantErr: true},
		{in: nil, wantErr: true},
	}
	for _, tt := range tests {
		got, err := toCount(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("toCount(%#v) = %d, %v; want %d, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestToCountRejectsOutOfRange(t *testing.T) {
	for _, in := range []any{int64(-1), -5, uint64(1) << 33} {
		got, err := toCount(in)
		if got != 0 {
			t.Errorf("toCount(%#v) = %d, want 0", in, got)
		}
		if !errors.Is(err, safecast.ErrOutOfRange) {
			t.Errorf("toCount(%#v) err = %v, want out of range", in, err)
		}
		if err != nil && !strings.Contains(err.Error(), CapParseInput+" returned") {
			t.Errorf("toCount(%#v) err = %q, want the capability named", in, err)
		}
	}
}
