package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CorpusID identifies a testcase inside one corpus.
type CorpusID uint64

// Testcase is a stored input plus the metadata feedbacks attached to it.
type Testcase struct {
	ID       CorpusID
	Input    Input
	Metadata map[string]any
}

// AddMetadata attaches v under key, replacing any previous value.
func (tc *Testcase) AddMetadata(key string, v any) {
	if tc.Metadata == nil {
		tc.Metadata = make(map[string]any)
	}
	tc.Metadata[key] = v
}

// Corpus stores testcases.
type Corpus interface {
	Add(tc *Testcase) (CorpusID, error)
	Get(id CorpusID) (*Testcase, bool)
	Count() int
}

// InMemoryCorpus keeps testcases in memory and schedules them round robin.
type InMemoryCorpus struct {
	cases  []*Testcase
	cursor int
}

// NewInMemoryCorpus returns an empty corpus.
func NewInMemoryCorpus() *InMemoryCorpus { return &InMemoryCorpus{} }

func (c *InMemoryCorpus) Add(tc *Testcase) (CorpusID, error) {
	tc.ID = CorpusID(len(c.cases))
	c.cases = append(c.cases, tc)
	return tc.ID, nil
}

func (c *InMemoryCorpus) Get(id CorpusID) (*Testcase, bool) {
	if uint64(id) >= uint64(len(c.cases)) {
		return nil, false
	}
	return c.cases[id], true
}

func (c *InMemoryCorpus) Count() int { return len(c.cases) }

// Next returns the next testcase id in queue order.
func (c *InMemoryCorpus) Next() (CorpusID, error) {
	if len(c.cases) == 0 {
		return 0, IllegalState("corpus is empty; add at least one initial input")
	}
	if c.cursor >= len(c.cases) {
		c.cursor = 0
	}
	id := CorpusID(c.cursor)
	c.cursor++
	return id, nil
}

// OnDiskCorpus writes every testcase to a directory: the raw input under a
// content-derived name and its metadata as a JSON sidecar next to it.
type OnDiskCorpus struct {
	mu    sync.Mutex
	dir   string
	count int
}

// NewOnDiskCorpus creates dir if needed.
func NewOnDiskCorpus(dir string) (*OnDiskCorpus, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir %s: %w", dir, err)
	}
	return &OnDiskCorpus{dir: dir}, nil
}

// Dir returns the corpus directory.
func (c *OnDiskCorpus) Dir() string { return c.dir }

func (c *OnDiskCorpus) Add(tc *Testcase) (CorpusID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := tc.Input.Name()
	path := filepath.Join(c.dir, name)
	if err := writeFileAtomic(path, tc.Input); err != nil {
		return 0, fmt.Errorf("store testcase %s: %w", name, err)
	}
	if len(tc.Metadata) > 0 {
		meta, err := json.MarshalIndent(tc.Metadata, "", "  ")
		if err != nil {
			return 0, fmt.Errorf("encode metadata of %s: %w", name, err)
		}
		if err := writeFileAtomic(filepath.Join(c.dir, "."+name+".metadata"), meta); err != nil {
			return 0, fmt.Errorf("store metadata of %s: %w", name, err)
		}
	}
	tc.ID = CorpusID(c.count)
	c.count++
	return tc.ID, nil
}

// Get is unsupported: stored objectives are for later inspection only.
func (c *OnDiskCorpus) Get(CorpusID) (*Testcase, bool) { return nil, false }

func (c *OnDiskCorpus) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return nil
}
