package engine

import (
	"context"
	"time"
)

// EventKind classifies fuzzer events.
type EventKind uint8

const (
	EventNewTestcase EventKind = iota
	EventObjective
	EventStats
	EventLog
	// EventClientExit is raised by the supervisor, not the worker, once a
	// worker has finished for good.
	EventClientExit
)

func (k EventKind) String() string {
	switch k {
	case EventNewTestcase:
		return "testcase"
	case EventObjective:
		return "objective"
	case EventStats:
		return "stats"
	case EventLog:
		return "log"
	case EventClientExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Event is what a worker reports to its monitor.
type Event struct {
	Kind       EventKind `msgpack:"kind"`
	ClientID   string    `msgpack:"client,omitempty"`
	Time       time.Time `msgpack:"time"`
	Executions uint64    `msgpack:"execs"`
	CorpusSize int       `msgpack:"corpus"`
	Objectives int       `msgpack:"objectives"`
	Exit       ExitKind  `msgpack:"exit,omitempty"`
	Input      []byte    `msgpack:"input,omitempty"`
	Message    string    `msgpack:"msg,omitempty"`
}

// NewEvent stamps an event of kind with the current counters of state.
func NewEvent(kind EventKind, state *State) Event {
	return Event{
		Kind:       kind,
		Time:       time.Now(),
		Executions: state.Executions(),
		CorpusSize: state.Corpus().Count(),
		Objectives: state.Solutions().Count(),
	}
}

// EventManager carries events from a worker to whoever monitors it.
type EventManager interface {
	Fire(ctx context.Context, ev Event) error
	// Process runs between fuzzing cycles, e.g. to emit periodic stats.
	Process(ctx context.Context, state *State) error
	// OnShutdown flushes pending events before the worker exits.
	OnShutdown() error
}

// LocalEventManager hands events to a function in the same process.
type LocalEventManager struct {
	handle    func(Event)
	interval  time.Duration
	lastStats time.Time
}

// DefaultStatsInterval is how often workers report stats.
const DefaultStatsInterval = time.Second

// NewLocalEventManager calls handle for every event; handle may be nil.
func NewLocalEventManager(handle func(Event)) *LocalEventManager {
	return &LocalEventManager{handle: handle, interval: DefaultStatsInterval}
}

func (m *LocalEventManager) Fire(_ context.Context, ev Event) error {
	if m.handle != nil {
		m.handle(ev)
	}
	return nil
}

func (m *LocalEventManager) Process(ctx context.Context, state *State) error {
	if time.Since(m.lastStats) < m.interval {
		return nil
	}
	m.lastStats = time.Now()
	return m.Fire(ctx, NewEvent(EventStats, state))
}

func (m *LocalEventManager) OnShutdown() error { return nil }
