package launcher

import (
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCores(t *testing.T) {
	tests := []struct {
		in   string
		want Cores
	}{
		{"0", Cores{0}},
		{"0,2-4", Cores{0, 2, 3, 4}},
		{" 3 , 1 ", Cores{1, 3}},
		{"1-2,2-3", Cores{1, 2, 3}},
	}
	for _, tt := range tests {
		got, err := ParseCores(tt.in)
		if err != nil {
			t.Fatalf("ParseCores(%q): %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseCores(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParseCoresAll(t *testing.T) {
	for _, in := range []string{"all", "ALL", ""} {
		got, err := ParseCores(in)
		if err != nil {
			t.Fatalf("ParseCores(%q): %v", in, err)
		}
		if len(got) != runtime.NumCPU() {
			t.Fatalf("ParseCores(%q) = %d cores, want %d", in, len(got), runtime.NumCPU())
		}
	}
}

func TestParseCoresRejects(t *testing.T) {
	for _, in := range []string{"a", "1,", "-1", "4-2", "1-x", "0-999999999"} {
		if _, err := ParseCores(in); err == nil {
			t.Errorf("ParseCores(%q) succeeded", in)
		}
	}
}

func TestCoresString(t *testing.T) {
	if got := (Cores{0, 2, 3}).String(); got != "0,2,3" {
		t.Fatalf("String() = %q", got)
	}
}
