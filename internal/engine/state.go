package engine

import (
	"encoding"
	"fmt"
)

// StateConfig configures NewState.
type StateConfig struct {
	// Rand defaults to a time-seeded StdRand.
	Rand Rand
	// Solutions receives objectives; defaults to an in-memory corpus.
	Solutions Corpus
	// StateFile, when set, makes the state durable across worker restarts.
	StateFile *StateFile
}

// State is everything a worker carries from one fuzzing cycle to the next.
type State struct {
	rand       Rand
	corpus     *InMemoryCorpus
	solutions  Corpus
	executions uint64
	current    *CorpusID
	retries    map[string]*RetryState
	store      *StateFile
	restored   bool
}

// NewState builds a fresh state or, when cfg.StateFile holds a snapshot,
// restores the one a previous incarnation of this worker left behind.
func NewState(cfg StateConfig) (*State, error) {
	s := &State{
		rand:      cfg.Rand,
		corpus:    NewInMemoryCorpus(),
		solutions: cfg.Solutions,
		retries:   make(map[string]*RetryState),
		store:     cfg.StateFile,
	}
	if s.rand == nil {
		s.rand = NewStdRandFromTime()
	}
	if s.solutions == nil {
		s.solutions = NewInMemoryCorpus()
	}
	if s.store == nil {
		return s, nil
	}

	var snap snapshot
	found, err := s.store.Load(&snap)
	if err != nil {
		return nil, fmt.Errorf("restore state: %w", err)
	}
	if found {
		if err := s.restore(&snap); err != nil {
			return nil, fmt.Errorf("restore state: %w", err)
		}
		s.restored = true
	}
	return s, nil
}

// Rand returns the random source.
func (s *State) Rand() Rand { return s.rand }

// Corpus returns the in-memory corpus of interesting inputs.
func (s *State) Corpus() *InMemoryCorpus { return s.corpus }

// Solutions returns the objective corpus.
func (s *State) Solutions() Corpus { return s.solutions }

// Executions returns the number of target executions so far.
func (s *State) Executions() uint64 { return s.executions }

func (s *State) addExecution() { s.executions++ }

// Restored reports whether the state was loaded from a snapshot.
func (s *State) Restored() bool { return s.restored }

// CurrentCorpusID returns the testcase the running stages work on.
func (s *State) CurrentCorpusID() (CorpusID, bool) {
	if s.current == nil {
		return 0, false
	}
	return *s.current, true
}

// SetCurrentCorpusID selects the testcase for the next stages.
func (s *State) SetCurrentCorpusID(id CorpusID) { s.current = &id }

// ClearCurrentCorpusID ends the current cycle.
func (s *State) ClearCurrentCorpusID() { s.current = nil }

// Retry returns a copy of the retry bookkeeping of the stage called name.
func (s *State) Retry(name string) (RetryState, bool) {
	rs, ok := s.retries[name]
	if !ok {
		return RetryState{}, false
	}
	return *rs, true
}

func (s *State) retry(name string) *RetryState {
	rs, ok := s.retries[name]
	if !ok {
		rs = &RetryState{Skipped: make(map[CorpusID]struct{})}
		s.retries[name] = rs
	}
	return rs
}

// Save persists the state if it has a state file.
func (s *State) Save() error {
	if s.store == nil {
		return nil
	}
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	return s.store.Save(snap)
}

// Remove deletes the persisted snapshot after a clean shutdown.
func (s *State) Remove() error {
	if s.store == nil {
		return nil
	}
	return s.store.Remove()
}

const stateSchemaVersion uint16 = 1

type snapshot struct {
	Schema     uint16                   `msgpack:"schema"`
	Executions uint64                   `msgpack:"executions"`
	Corpus     [][]byte                 `msgpack:"corpus"`
	Cursor     int                      `msgpack:"cursor"`
	Current    *uint64                  `msgpack:"current,omitempty"`
	Retries    map[string]retrySnapshot `msgpack:"retries"`
	Rand       []byte                   `msgpack:"rand,omitempty"`
}

type retrySnapshot struct {
	TriesLeft *int     `msgpack:"tries_left,omitempty"`
	Skipped   []uint64 `msgpack:"skipped,omitempty"`
}

func (s *State) snapshot() (*snapshot, error) {
	snap := &snapshot{
		Schema:     stateSchemaVersion,
		Executions: s.executions,
		Cursor:     s.corpus.cursor,
		Retries:    make(map[string]retrySnapshot, len(s.retries)),
	}
	for _, tc := range s.corpus.cases {
		snap.Corpus = append(snap.Corpus, tc.Input)
	}
	if s.current != nil {
		cur := uint64(*s.current)
		snap.Current = &cur
	}
	for name, rs := range s.retries {
		rsnap := retrySnapshot{TriesLeft: rs.TriesLeft}
		for id := range rs.Skipped {
			rsnap.Skipped = append(rsnap.Skipped, uint64(id))
		}
		snap.Retries[name] = rsnap
	}
	if m, ok := s.rand.(encoding.BinaryMarshaler); ok {
		data, err := m.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("snapshot rand: %w", err)
		}
		snap.Rand = data
	}
	return snap, nil
}

func (s *State) restore(snap *snapshot) error {
	if snap.Schema != stateSchemaVersion {
		return fmt.Errorf("state schema %d, want %d", snap.Schema, stateSchemaVersion)
	}
	s.executions = snap.Executions
	for _, in := range snap.Corpus {
		if _, err := s.corpus.Add(&Testcase{Input: Input(in)}); err != nil {
			return err
		}
	}
	s.corpus.cursor = snap.Cursor
	if snap.Current != nil {
		s.SetCurrentCorpusID(CorpusID(*snap.Current))
	}
	for name, rsnap := range snap.Retries {
		rs := s.retry(name)
		rs.TriesLeft = rsnap.TriesLeft
		for _, id := range rsnap.Skipped {
			rs.Skipped[CorpusID(id)] = struct{}{}
		}
	}
	if u, ok := s.rand.(encoding.BinaryUnmarshaler); ok && len(snap.Rand) > 0 {
		if err := u.UnmarshalBinary(snap.Rand); err != nil {
			return fmt.Errorf("restore rand: %w", err)
		}
	}
	return nil
}
