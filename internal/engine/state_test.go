package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStateSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker-0", "state.msgpack")
	sf, err := OpenStateFile(path)
	if err != nil {
		t.Fatal(err)
	}

	first, err := NewState(StateConfig{Rand: NewStdRand(42), StateFile: sf})
	if err != nil {
		t.Fatal(err)
	}
	if first.Restored() {
		t.Fatal("fresh state reported as restored")
	}
	for _, in := range []string{"42", "1337", "8"} {
		if _, err := first.Corpus().Add(&Testcase{Input: Input(in)}); err != nil {
			t.Fatal(err)
		}
	}
	id, err := first.Corpus().Next()
	if err != nil {
		t.Fatal(err)
	}
	first.SetCurrentCorpusID(id)
	first.addExecution()
	first.addExecution()
	if _, err := ShouldRestart(first, "stage", DefaultRetryCap); err != nil {
		t.Fatal(err)
	}
	first.Rand().Uint64()
	if err := first.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second, err := NewState(StateConfig{Rand: NewStdRand(7), StateFile: sf})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !second.Restored() {
		t.Fatal("expected restored state")
	}
	if got := second.Executions(); got != 2 {
		t.Errorf("Executions = %d, want 2", got)
	}
	var inputs []string
	for i := range second.Corpus().Count() {
		tc, _ := second.Corpus().Get(CorpusID(i))
		inputs = append(inputs, string(tc.Input))
	}
	if diff := cmp.Diff([]string{"42", "1337", "8"}, inputs); diff != "" {
		t.Errorf("corpus mismatch (-want +got):\n%s", diff)
	}
	if cur, ok := second.CurrentCorpusID(); !ok || cur != id {
		t.Errorf("CurrentCorpusID = %d, %v; want %d, true", cur, ok, id)
	}
	rs, ok := second.Retry("stage")
	if !ok || rs.TriesLeft == nil || *rs.TriesLeft != DefaultRetryCap {
		t.Errorf("retry state not restored: %+v", rs)
	}
	if next, _ := second.Corpus().Next(); next != 1 {
		t.Errorf("queue cursor not restored: next = %d, want 1", next)
	}
	if a, b := first.Rand().Uint64(), second.Rand().Uint64(); a != b {
		t.Errorf("rand diverged after restore: %d != %d", a, b)
	}

	if err := second.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("snapshot still present: %v", err)
	}
}

func TestStateWithoutFileSavesNothing(t *testing.T) {
	s := newTestState(t)
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(); err != nil {
		t.Fatal(err)
	}
}
