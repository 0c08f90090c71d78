package engine

// Feedback decides whether an execution is interesting.
type Feedback interface {
	Name() string
	IsInteresting(state *State, input Input, obs *Observers, exit ExitKind) (bool, error)
	// AppendMetadata runs only for inputs that end up stored.
	AppendMetadata(state *State, obs *Observers, tc *Testcase) error
}

// CrashFeedback is interesting on ExitCrash.
type CrashFeedback struct{}

func (CrashFeedback) Name() string { return "CrashFeedback" }

func (CrashFeedback) IsInteresting(_ *State, _ Input, _ *Observers, exit ExitKind) (bool, error) {
	return exit == ExitCrash, nil
}

func (CrashFeedback) AppendMetadata(*State, *Observers, *Testcase) error { return nil }

// DiffExitKindFeedback is interesting on ExitDiff.
type DiffExitKindFeedback struct{}

func (DiffExitKindFeedback) Name() string { return "DiffExitKindFeedback" }

func (DiffExitKindFeedback) IsInteresting(_ *State, _ Input, _ *Observers, exit ExitKind) (bool, error) {
	return exit == ExitDiff, nil
}

func (DiffExitKindFeedback) AppendMetadata(*State, *Observers, *Testcase) error { return nil }

// MaxMapFeedback is interesting when any entry of a coverage map exceeds the
// largest value seen at that index so far.
type MaxMapFeedback struct {
	observer string
	history  []uint8
}

// NewMaxMapFeedback tracks the map observer called observer.
func NewMaxMapFeedback(observer string) *MaxMapFeedback {
	return &MaxMapFeedback{observer: observer}
}

func (f *MaxMapFeedback) Name() string { return "MaxMapFeedback" }

func (f *MaxMapFeedback) IsInteresting(_ *State, _ Input, obs *Observers, _ ExitKind) (bool, error) {
	o, ok := obs.Lookup(f.observer)
	if !ok {
		return false, IllegalState("map observer %q not found", f.observer)
	}
	m, ok := o.(*MapObserver)
	if !ok {
		return false, IllegalState("observer %q is %T, want *MapObserver", f.observer, o)
	}
	if len(f.history) < len(m.Map) {
		f.history = append(f.history, make([]uint8, len(m.Map)-len(f.history))...)
	}
	interesting := false
	for i, v := range m.Map {
		if v > f.history[i] {
			f.history[i] = v
			interesting = true
		}
	}
	return interesting, nil
}

func (f *MaxMapFeedback) AppendMetadata(*State, *Observers, *Testcase) error { return nil }

// orFast is a short-circuiting OR: evaluation stops at the first member that
// finds the input interesting. Every member appends metadata.
type orFast struct {
	members []Feedback
}

// OrFast combines feedbacks with a short-circuiting OR.
func OrFast(members ...Feedback) Feedback {
	return &orFast{members: members}
}

func (o *orFast) Name() string { return "OrFast" }

func (o *orFast) IsInteresting(state *State, input Input, obs *Observers, exit ExitKind) (bool, error) {
	for _, m := range o.members {
		ok, err := m.IsInteresting(state, input, obs, exit)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (o *orFast) AppendMetadata(state *State, obs *Observers, tc *Testcase) error {
	for _, m := range o.members {
		if err := m.AppendMetadata(state, obs, tc); err != nil {
			return err
		}
	}
	return nil
}

// noFeedback is never interesting.
type noFeedback struct{}

func (noFeedback) Name() string { return "None" }

func (noFeedback) IsInteresting(*State, Input, *Observers, ExitKind) (bool, error) {
	return false, nil
}

func (noFeedback) AppendMetadata(*State, *Observers, *Testcase) error { return nil }
