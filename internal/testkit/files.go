package testkit

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// WriteFile writes content to name below a fresh temp dir; name may contain
// directories.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	return writeFile(t, name, content)
}
