package monitor

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"gramfuzz/internal/engine"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestMonitor(out io.Writer, metrics *Metrics) (*Monitor, *fakeClock) {
	color.NoColor = true
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(Options{Out: out, Metrics: metrics, Now: clock.Now}), clock
}

func TestMonitorAggregatesClients(t *testing.T) {
	m, clock := newTestMonitor(nil, nil)
	start := clock.now
	m.Handle(engine.Event{Kind: engine.EventStats, ClientID: "a", Time: start, Executions: 10, CorpusSize: 1})
	m.Handle(engine.Event{Kind: engine.EventStats, ClientID: "b", Time: start, Executions: 5, CorpusSize: 2})
	m.Handle(engine.Event{Kind: engine.EventObjective, ClientID: "a", Time: start.Add(2 * time.Second), Executions: 30, CorpusSize: 1, Objectives: 1})
	m.Handle(engine.Event{Kind: engine.EventClientExit, ClientID: "b", Time: start.Add(2 * time.Second)})

	clock.now = start.Add(2 * time.Second)
	snap := m.Snapshot()
	if len(snap.Clients) != 2 {
		t.Fatalf("clients = %d", len(snap.Clients))
	}
	if snap.Executions != 35 || snap.Corpus != 3 || snap.Objectives != 1 || snap.Finished != 1 {
		t.Fatalf("totals = %+v", snap)
	}
	if got := snap.Rate(); got != 17.5 {
		t.Fatalf("Rate() = %v", got)
	}
	if snap.Clients[1].Executions != 5 {
		t.Fatal("exit event must not reset counters")
	}
}

func TestMonitorPrintsStatusLines(t *testing.T) {
	var out bytes.Buffer
	m, clock := newTestMonitor(&out, nil)
	m.Handle(engine.Event{Kind: engine.EventObjective, ClientID: "a", Time: clock.now.Add(61 * time.Second), Executions: 1234, Objectives: 1})
	m.Handle(engine.Event{Kind: engine.EventLog, ClientID: "a", Message: "restarting client on core 0"})

	got := out.String()
	for _, want := range []string{
		"[Objective #0] (GLOBAL) run time: 0h-1m-1s, clients: 1, corpus: 0, objectives: 1, executions: 1,234",
		"(CLIENT) corpus: 0, objectives: 1, executions: 1,234",
		"[Log #0] restarting client on core 0",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestMonitorQuiet(t *testing.T) {
	var out bytes.Buffer
	m, _ := newTestMonitor(&out, nil)
	m.opts.Quiet = true
	m.Handle(engine.Event{Kind: engine.EventStats, ClientID: "a"})
	if out.Len() != 0 {
		t.Fatalf("quiet monitor printed %q", out.String())
	}
}

func TestSubscribeKeepsLatest(t *testing.T) {
	m, _ := newTestMonitor(nil, nil)
	sub := m.Subscribe()
	for i := range 3 {
		m.Handle(engine.Event{Kind: engine.EventStats, ClientID: "a", Executions: uint64(i + 1)})
	}
	snap := <-sub
	if snap.Executions != 3 {
		t.Fatalf("snapshot executions = %d, want latest", snap.Executions)
	}
	m.Close()
	if _, ok := <-sub; ok {
		t.Fatal("subscription not closed")
	}
	m.Handle(engine.Event{Kind: engine.EventStats, ClientID: "a"})
}

func TestFormatDurationAndRate(t *testing.T) {
	if got := FormatDuration(3*time.Hour + 4*time.Minute + 5500*time.Millisecond); got != "3h-4m-5s" {
		t.Errorf("FormatDuration = %q", got)
	}
	if got := FormatRate(1234.56); got != "1,234.6" {
		t.Errorf("FormatRate = %q", got)
	}
	if got := FormatRate(25000); got != "25 k" {
		t.Errorf("FormatRate = %q", got)
	}
}

func TestMetricsFollowEvents(t *testing.T) {
	metrics := NewMetrics()
	m, _ := newTestMonitor(nil, metrics)
	m.Handle(engine.Event{Kind: engine.EventStats, ClientID: "a", Executions: 9, CorpusSize: 2})
	m.Handle(engine.Event{Kind: engine.EventObjective, ClientID: "a", Executions: 11, CorpusSize: 2, Objectives: 1})

	values := gather(t, metrics)
	for name, want := range map[string]float64{
		"gramfuzz_executions/client=a":         11,
		"gramfuzz_corpus_size/client=a":        2,
		"gramfuzz_objectives/client=a":         1,
		"gramfuzz_events_total/kind=objective": 1,
		"gramfuzz_events_total/kind=stats":     1,
	} {
		if got, ok := values[name]; !ok || got != want {
			t.Errorf("%s = %v (present %v), want %v", name, got, ok, want)
		}
	}
}

// gather flattens the registry to "name/label=value" keys.
func gather(t *testing.T, m *Metrics) map[string]float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "/" + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			}
		}
	}
	return out
}

func TestMetricsServe(t *testing.T) {
	metrics := NewMetrics()
	m, _ := newTestMonitor(nil, metrics)
	m.Handle(engine.Event{Kind: engine.EventStats, ClientID: "a", Executions: 3})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- metrics.serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `gramfuzz_executions{client="a"} 3`) {
		t.Fatalf("metrics body:\n%s", body)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("serve: %v", err)
	}
}
