package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColoredKeepsNumbers(t *testing.T) {
	color.NoColor = true
	orig := Version
	t.Cleanup(func() { Version = orig })

	tests := map[string]string{
		"1.2.3":      "1.2.3",
		"0.1.0-dev":  "0.1.0-dev",
		"not-semver": "not-semver",
		"1.2.3-rc.1": "1.2.3-rc.1",
	}
	for in, want := range tests {
		Version = in
		if got := Colored(); got != want {
			t.Errorf("Colored() with %q = %q, want %q", in, got, want)
		}
	}
}

func TestStringIncludesOverrides(t *testing.T) {
	color.NoColor = true
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = origVersion, origCommit, origDate })

	Version = "1.2.3"
	GitCommit = "abc123def456789"
	BuildDate = "2024-01-15T10:30:00Z"

	got := String()
	for _, want := range []string{"gramfuzz 1.2.3", "(abc123def456)", "built 2024-01-15T10:30:00Z"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestToolchainIsRecorded(t *testing.T) {
	if got := Toolchain(); !strings.HasPrefix(got, "go") {
		t.Fatalf("Toolchain() = %q", got)
	}
	for _, m := range Modules() {
		if m.Path == "" {
			t.Fatalf("module without a path: %+v", m)
		}
	}
}
