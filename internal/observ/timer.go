package observ

import (
	"fmt"
	"strings"
	"time"
)

// Call records one timed call into the grammar runtime.
type Call struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer collects call durations. It is not goroutine-safe; the worker that
// owns a runtime is single-threaded.
type Timer struct {
	calls []Call
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{calls: make([]Call, 0, 16)} }

// Begin starts a new call and returns its index.
func (t *Timer) Begin(name string) int {
	t.calls = append(t.calls, Call{Name: name, Start: time.Now()})
	return len(t.calls) - 1
}

// End finishes a call by its index.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.calls) {
		return
	}
	c := &t.calls[idx]
	c.Dur = time.Since(c.Start)
	c.Note = note
}

// OpReport aggregates every call sharing a name.
type OpReport struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	TotalMS float64 `json:"total_ms"`
	MeanMS  float64 `json:"mean_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// Report is the aggregated timer state, in first-seen order of names.
type Report struct {
	TotalMS float64    `json:"total_ms"`
	Ops     []OpReport `json:"ops"`
}

// Report aggregates the recorded calls by name.
func (t *Timer) Report() Report {
	var report Report
	index := make(map[string]int)
	for _, c := range t.calls {
		i, ok := index[c.Name]
		if !ok {
			i = len(report.Ops)
			index[c.Name] = i
			report.Ops = append(report.Ops, OpReport{Name: c.Name})
		}
		op := &report.Ops[i]
		ms := durationToMillis(c.Dur)
		op.Count++
		op.TotalMS += ms
		if ms > op.MaxMS {
			op.MaxMS = ms
		}
		report.TotalMS += ms
	}
	for i := range report.Ops {
		report.Ops[i].MeanMS = report.Ops[i].TotalMS / float64(report.Ops[i].Count)
	}
	return report
}

// Summary returns a human-readable table of the report.
func (t *Timer) Summary() string {
	report := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, op := range report.Ops {
		fmt.Fprintf(&sb, "  %-12s %5d calls %9.2f ms total %8.2f ms mean %8.2f ms max\n",
			op.Name, op.Count, op.TotalMS, op.MeanMS, op.MaxMS)
	}
	fmt.Fprintf(&sb, "  %-12s %21.2f ms\n", "total", report.TotalMS)
	return sb.String()
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
