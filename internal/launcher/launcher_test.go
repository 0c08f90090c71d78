package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"gramfuzz/internal/engine"
)

const envHelper = "GRAMFUZZ_LAUNCHER_HELPER"

// TestMain turns the test binary into a worker when the launcher re-execs it.
func TestMain(m *testing.M) {
	if mode := os.Getenv(envHelper); mode != "" {
		os.Exit(helperWorker(mode))
	}
	os.Exit(m.Run())
}

func helperWorker(mode string) int {
	w, ok, err := WorkerFromEnv()
	if !ok || err != nil {
		fmt.Fprintln(os.Stderr, "helper: not a worker:", err)
		return 3
	}
	ctx := context.Background()
	c, err := Dial(ctx, w.Broker, w.ClientID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "helper:", err)
		return 3
	}
	defer c.OnShutdown()
	_ = c.Fire(ctx, engine.Event{Kind: engine.EventStats, Executions: uint64(w.Restarts + 1)})
	switch mode {
	case "restart-once":
		if w.Restarts == 0 {
			return ExitRestart
		}
		return 0
	case "fail":
		return 3
	case "hang":
		time.Sleep(time.Minute)
		return 0
	default:
		return 0
	}
}

type eventLog struct {
	mu  sync.Mutex
	evs []engine.Event
}

func (l *eventLog) add(ev engine.Event) {
	l.mu.Lock()
	l.evs = append(l.evs, ev)
	l.mu.Unlock()
}

func (l *eventLog) count(kind engine.EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.evs {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func helperConfig(mode string, cores Cores, log *eventLog) Config {
	return Config{
		Cores:        cores,
		BrokerAddr:   "127.0.0.1:0",
		Executable:   os.Args[0],
		Env:          []string{envHelper + "=" + mode},
		OnEvent:      log.add,
		RestartEvery: time.Millisecond,
		StopGrace:    time.Second,
	}
}

func TestLaunchRunsOneWorkerPerCore(t *testing.T) {
	var log eventLog
	if err := Launch(context.Background(), helperConfig("ok", Cores{0, 1}, &log)); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got := log.count(engine.EventStats); got != 2 {
		t.Fatalf("stats events = %d, want 2", got)
	}
	if got := log.count(engine.EventClientExit); got != 2 {
		t.Fatalf("exit events = %d, want 2", got)
	}
}

func TestLaunchRestartsWorkerOnRequest(t *testing.T) {
	var log eventLog
	if err := Launch(context.Background(), helperConfig("restart-once", Cores{0}, &log)); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got := log.count(engine.EventStats); got != 2 {
		t.Fatalf("stats events = %d, want 2 incarnations", got)
	}
	if got := log.count(engine.EventLog); got != 1 {
		t.Fatalf("restart notices = %d, want 1", got)
	}
}

func TestLaunchReportsFatalExit(t *testing.T) {
	var log eventLog
	err := Launch(context.Background(), helperConfig("fail", Cores{0}, &log))
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("Launch error = %v, want exit status 3", err)
	}
}

func TestLaunchShutsDownOnCancel(t *testing.T) {
	var log eventLog
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := Launch(ctx, helperConfig("hang", Cores{0}, &log))
	if !errors.Is(err, engine.ErrShuttingDown) {
		t.Fatalf("Launch error = %v, want ErrShuttingDown", err)
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != outcomeDone {
		t.Fatal("nil error should be done")
	}
	if classify(errors.New("boom")) != outcomeFatal {
		t.Fatal("start failure should be fatal")
	}
}
