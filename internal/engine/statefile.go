package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// StateFile persists a worker's state snapshot as msgpack.
// Writes go to a temp file that is renamed over the previous snapshot, so a
// worker killed mid-write leaves the last complete snapshot behind.
type StateFile struct {
	mu   sync.Mutex
	path string
}

// OpenStateFile prepares path's directory.
func OpenStateFile(path string) (*StateFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &StateFile{path: path}, nil
}

// Path returns the snapshot location.
func (f *StateFile) Path() string { return f.path }

// Save writes v.
func (f *StateFile) Save(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "state-*")
	if err != nil {
		return err
	}
	// No-op once the rename succeeded.
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := msgpack.NewEncoder(tmp).Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Load decodes the snapshot into out. It reports false when there is none.
func (f *StateFile) Load(out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer file.Close()

	if err := msgpack.NewDecoder(file).Decode(out); err != nil {
		return false, fmt.Errorf("decode state %s: %w", f.path, err)
	}
	return true, nil
}

// Remove deletes the snapshot.
func (f *StateFile) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
