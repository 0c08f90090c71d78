package launcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"gramfuzz/internal/engine"
)

func TestBrokerReceivesClientEvents(t *testing.T) {
	var (
		mu  sync.Mutex
		got []engine.Event
	)
	received := make(chan struct{}, 8)
	b, err := Listen("127.0.0.1:0", func(ev engine.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		received <- struct{}{}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx) }()

	c, err := Dial(ctx, b.Addr(), "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Fire(ctx, engine.Event{Kind: engine.EventObjective, Input: []byte("13"), Exit: engine.ExitCrash}); err != nil {
		t.Fatal(err)
	}
	if err := c.Fire(ctx, engine.Event{Kind: engine.EventStats, Executions: 7}); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	if err := c.OnShutdown(); err != nil {
		t.Fatal(err)
	}
	if err := c.Fire(ctx, engine.Event{Kind: engine.EventLog}); err == nil {
		t.Fatal("Fire after OnShutdown succeeded")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].ClientID != "client-a" || got[0].Kind != engine.EventObjective || string(got[0].Input) != "13" {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[1].Executions != 7 || got[1].Time.IsZero() {
		t.Fatalf("second event = %+v", got[1])
	}
}

func TestClientProcessThrottlesStats(t *testing.T) {
	count := make(chan struct{}, 8)
	b, err := Listen("127.0.0.1:0", func(engine.Event) { count <- struct{}{} }, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Serve(ctx) }()

	c, err := Dial(ctx, b.Addr(), "c")
	if err != nil {
		t.Fatal(err)
	}
	defer c.OnShutdown()
	state, err := engine.NewState(engine.StateConfig{Rand: engine.NewStdRand(1)})
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		if err := c.Process(ctx, state); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-count:
	case <-time.After(5 * time.Second):
		t.Fatal("no stats event")
	}
	select {
	case <-count:
		t.Fatal("stats were not throttled")
	case <-time.After(100 * time.Millisecond):
	}
}
