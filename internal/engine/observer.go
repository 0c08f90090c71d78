package engine

import "fmt"

// Observer captures one measurement of a target execution.
type Observer interface {
	Name() string
	// PreExec runs right before the observed target executes.
	PreExec()
}

// Slot is a named single-value observer. One executor writes it during a run
// and one feedback reads it right after.
type Slot[T any] struct {
	name  string
	value T
}

// NewSlot returns a slot holding the zero value of T.
func NewSlot[T any](name string) *Slot[T] {
	return &Slot[T]{name: name}
}

// Name returns the slot name.
func (s *Slot[T]) Name() string { return s.name }

// PreExec keeps the previous value; writers always overwrite it.
func (s *Slot[T]) PreExec() {}

// Set stores v.
func (s *Slot[T]) Set(v T) { s.value = v }

// Get returns the stored value.
func (s *Slot[T]) Get() T { return s.value }

// Handle returns a typed handle addressing this slot by name.
func (s *Slot[T]) Handle() Handle[T] { return Handle[T]{name: s.name} }

// Handle addresses a Slot[T] inside an Observers set.
type Handle[T any] struct {
	name string
}

// NewHandle returns a handle for a slot called name.
func NewHandle[T any](name string) Handle[T] { return Handle[T]{name: name} }

// Name returns the addressed slot name.
func (h Handle[T]) Name() string { return h.name }

// MapObserver is a coverage map, zeroed before every run.
type MapObserver struct {
	name string
	Map  []uint8
}

// NewMapObserver returns a zeroed map of size entries.
func NewMapObserver(name string, size int) *MapObserver {
	return &MapObserver{name: name, Map: make([]uint8, size)}
}

// Name returns the observer name.
func (m *MapObserver) Name() string { return m.name }

// PreExec zeroes the map.
func (m *MapObserver) PreExec() { clear(m.Map) }

// Hit increments the counter at idx, saturating at 255.
func (m *MapObserver) Hit(idx int) {
	if idx >= 0 && idx < len(m.Map) && m.Map[idx] < 0xff {
		m.Map[idx]++
	}
}

// Observers is a name-indexed set of observers.
type Observers struct {
	order  []string
	byName map[string]Observer
}

// NewObservers builds a set from obs. Names must be unique.
func NewObservers(obs ...Observer) *Observers {
	set := &Observers{byName: make(map[string]Observer, len(obs))}
	for _, o := range obs {
		set.Add(o)
	}
	return set
}

// Add inserts o, replacing any observer with the same name.
func (s *Observers) Add(o Observer) {
	if _, ok := s.byName[o.Name()]; !ok {
		s.order = append(s.order, o.Name())
	}
	s.byName[o.Name()] = o
}

// Lookup returns the observer called name.
func (s *Observers) Lookup(name string) (Observer, bool) {
	if s == nil {
		return nil, false
	}
	o, ok := s.byName[name]
	return o, ok
}

// PreExecAll calls PreExec on every observer in insertion order.
func (s *Observers) PreExecAll() {
	if s == nil {
		return
	}
	for _, name := range s.order {
		s.byName[name].PreExec()
	}
}

// Len returns the number of observers.
func (s *Observers) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Merge returns a new set holding the observers of all sets; later sets win
// on name clashes.
func Merge(sets ...*Observers) *Observers {
	out := NewObservers()
	for _, set := range sets {
		if set == nil {
			continue
		}
		for _, name := range set.order {
			out.Add(set.byName[name])
		}
	}
	return out
}

// Get resolves h inside obs. A missing or mistyped slot is a configuration
// defect and reported as ErrIllegalState.
func Get[T any](obs *Observers, h Handle[T]) (*Slot[T], error) {
	o, ok := obs.Lookup(h.name)
	if !ok {
		return nil, IllegalState("observer %q not found", h.name)
	}
	slot, ok := o.(*Slot[T])
	if !ok {
		return nil, IllegalState("observer %q has type %T, want %T", h.name, o, slot)
	}
	return slot, nil
}

// String lists the observer names.
func (s *Observers) String() string {
	if s == nil {
		return "[]"
	}
	return fmt.Sprint(s.order)
}
