// Package monitor aggregates worker events into per-client and global
// statistics, prints them as status lines and exports them as Prometheus
// metrics.
package monitor

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"gramfuzz/internal/engine"
)

// ClientStats is the last known state of one worker.
type ClientStats struct {
	ID         string
	Executions uint64
	Corpus     int
	Objectives int
	Done       bool
	First      time.Time
	Last       time.Time
}

// Rate is executions per second since the client was first seen.
func (c ClientStats) Rate(now time.Time) float64 {
	return rate(c.Executions, now.Sub(c.First))
}

// Snapshot is a consistent copy of the monitor's view.
type Snapshot struct {
	Start      time.Time
	Now        time.Time
	Clients    []ClientStats
	Executions uint64
	Corpus     int
	Objectives int
	Finished   int
}

// RunTime is the wall time since the monitor started.
func (s Snapshot) RunTime() time.Duration { return s.Now.Sub(s.Start) }

// Rate is the global executions per second.
func (s Snapshot) Rate() float64 { return rate(s.Executions, s.RunTime()) }

func rate(execs uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(execs) / d.Seconds()
}

// Options configures New.
type Options struct {
	// Out receives status lines; nil or Quiet disables printing.
	Out   io.Writer
	Quiet bool
	// Metrics, when set, is updated for every event.
	Metrics *Metrics
	// Now is the clock, for tests.
	Now func() time.Time
}

// Monitor consumes engine events. Handle is safe for concurrent use.
type Monitor struct {
	opts  Options
	start time.Time

	mu      sync.Mutex
	index   map[string]int
	clients []*ClientStats
	subs    []chan Snapshot
	closed  bool
}

// New starts a monitor clock.
func New(opts Options) *Monitor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		opts:    opts,
		start:   opts.Now(),
		index:   make(map[string]int),
	}
}

var (
	tagTestcase  = color.New(color.FgGreen, color.Bold)
	tagObjective = color.New(color.FgRed, color.Bold)
	tagStats     = color.New(color.FgCyan)
	tagLog       = color.New(color.FgYellow)
)

func tagFor(kind engine.EventKind) *color.Color {
	switch kind {
	case engine.EventNewTestcase:
		return tagTestcase
	case engine.EventObjective:
		return tagObjective
	case engine.EventLog, engine.EventClientExit:
		return tagLog
	default:
		return tagStats
	}
}

func title(kind engine.EventKind) string {
	switch kind {
	case engine.EventNewTestcase:
		return "Testcase"
	case engine.EventObjective:
		return "Objective"
	case engine.EventLog:
		return "Log"
	case engine.EventClientExit:
		return "Exit"
	default:
		return "Stats"
	}
}

// Handle records ev and prints its status line.
func (m *Monitor) Handle(ev engine.Event) {
	if ev.Time.IsZero() {
		ev.Time = m.opts.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	idx, c := m.client(ev.ClientID, ev.Time)
	switch ev.Kind {
	case engine.EventClientExit:
		c.Done = true
	case engine.EventLog:
	default:
		c.Executions = ev.Executions
		c.Corpus = ev.CorpusSize
		c.Objectives = ev.Objectives
	}
	c.Last = ev.Time

	snap := m.snapshotLocked(ev.Time)
	if m.opts.Metrics != nil {
		m.opts.Metrics.observe(ev, *c)
	}
	if m.opts.Out != nil && !m.opts.Quiet {
		fmt.Fprintln(m.opts.Out, FormatEvent(ev, idx, snap, *c))
	}
	for _, ch := range m.subs {
		publish(ch, snap)
	}
}

func (m *Monitor) client(id string, at time.Time) (int, *ClientStats) {
	if i, ok := m.index[id]; ok {
		return i, m.clients[i]
	}
	c := &ClientStats{ID: id, First: at}
	m.index[id] = len(m.clients)
	m.clients = append(m.clients, c)
	return len(m.clients) - 1, c
}

// Snapshot returns the current view.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(m.opts.Now())
}

func (m *Monitor) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{Start: m.start, Now: now, Clients: make([]ClientStats, 0, len(m.clients))}
	for _, cp := range m.clients {
		c := *cp
		snap.Clients = append(snap.Clients, c)
		snap.Executions += c.Executions
		snap.Corpus += c.Corpus
		snap.Objectives += c.Objectives
		if c.Done {
			snap.Finished++
		}
	}
	return snap
}

// Subscribe returns a channel holding the latest snapshot after every
// event. Slow readers only miss intermediate snapshots.
func (m *Monitor) Subscribe() <-chan Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if m.closed {
		close(ch)
		return ch
	}
	m.subs = append(m.subs, ch)
	return ch
}

// Close ends every subscription; later events are dropped.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}

func publish(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

// FormatEvent renders the global status line for ev followed by the line
// of the client that sent it.
func FormatEvent(ev engine.Event, idx int, snap Snapshot, c ClientStats) string {
	tag := tagFor(ev.Kind).Sprintf("[%s #%d]", title(ev.Kind), idx)
	switch ev.Kind {
	case engine.EventLog:
		return fmt.Sprintf("%s %s", tag, ev.Message)
	case engine.EventClientExit:
		return fmt.Sprintf("%s client finished after %s executions", tag, humanize.Comma(int64(c.Executions)))
	}
	return fmt.Sprintf("%s (GLOBAL) run time: %s, clients: %d, corpus: %s, objectives: %s, executions: %s, exec/sec: %s\n"+
		"                  (CLIENT) corpus: %s, objectives: %s, executions: %s, exec/sec: %s",
		tag, FormatDuration(snap.RunTime()), len(snap.Clients),
		humanize.Comma(int64(snap.Corpus)), humanize.Comma(int64(snap.Objectives)),
		humanize.Comma(int64(snap.Executions)), FormatRate(snap.Rate()),
		humanize.Comma(int64(c.Corpus)), humanize.Comma(int64(c.Objectives)),
		humanize.Comma(int64(c.Executions)), FormatRate(c.Rate(snap.Now)))
}

// FormatDuration prints d as 0h-0m-0s.
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	return fmt.Sprintf("%dh-%dm-%ds", h, mins, d/time.Second)
}

// FormatRate prints an exec/sec figure, using SI suffixes above 10k.
func FormatRate(r float64) string {
	if r >= 10_000 {
		return humanize.SIWithDigits(r, 1, "")
	}
	return humanize.FormatFloat("#,###.#", r)
}
