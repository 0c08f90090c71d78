// Package launcher runs one fuzzing worker process per selected core, keeps
// restarting workers that ask for it, and funnels their events through a
// local broker into a single monitor callback.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/trace"
)

// Config configures Launch.
type Config struct {
	Cores Cores
	// BrokerAddr defaults to 127.0.0.1:DefaultBrokerPort.
	BrokerAddr string
	// Executable defaults to the running binary.
	Executable string
	Args       []string
	// Env is appended to the parent's environment for every worker.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
	// OnEvent receives every worker event, never concurrently.
	OnEvent func(engine.Event)
	// RestartEvery and RestartBurst throttle restarts of one worker.
	RestartEvery time.Duration
	RestartBurst int
	// StopGrace is how long a worker may take to exit after an interrupt.
	StopGrace time.Duration
	Tracer    trace.Tracer
}

func (c *Config) defaults() error {
	if len(c.Cores) == 0 {
		return errors.New("launcher: no cores selected")
	}
	if c.BrokerAddr == "" {
		c.BrokerAddr = "127.0.0.1:" + strconv.Itoa(DefaultBrokerPort)
	}
	if c.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("launcher: locate executable: %w", err)
		}
		c.Executable = exe
	}
	if c.RestartEvery <= 0 {
		c.RestartEvery = time.Second
	}
	if c.RestartBurst <= 0 {
		c.RestartBurst = 3
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 5 * time.Second
	}
	if c.Tracer == nil {
		c.Tracer = trace.Nop
	}
	return nil
}

// Launch starts the broker and one supervised worker per core and blocks
// until every worker has finished. It returns engine.ErrShuttingDown when
// ctx is cancelled first.
func Launch(ctx context.Context, cfg Config) error {
	if err := cfg.defaults(); err != nil {
		return err
	}
	span := trace.Begin(cfg.Tracer, trace.ScopeLauncher, "launch", 0).
		WithExtra("cores", cfg.Cores.String())
	defer span.End("")

	broker, err := Listen(cfg.BrokerAddr, cfg.OnEvent, cfg.Tracer)
	if err != nil {
		return err
	}
	launchID := uuid.NewString()

	// Брокер живёт, пока жив хотя бы один воркер.
	brokerCtx, stopBroker := context.WithCancel(context.Background())
	brokerDone := make(chan error, 1)
	go func() { brokerDone <- broker.Serve(brokerCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	for _, core := range cfg.Cores {
		w := Worker{
			Core:     core,
			Broker:   broker.Addr(),
			ClientID: uuid.NewString(),
			LaunchID: launchID,
		}
		g.Go(func() error {
			return supervise(gctx, &cfg, broker, w, span.ID())
		})
	}
	werr := g.Wait()

	stopBroker()
	if berr := <-brokerDone; berr != nil && werr == nil {
		werr = berr
	}
	if ctx.Err() != nil {
		return engine.ErrShuttingDown
	}
	return werr
}

func supervise(ctx context.Context, cfg *Config, broker *Broker, w Worker, parent uint64) error {
	limiter := rate.NewLimiter(rate.Every(cfg.RestartEvery), cfg.RestartBurst)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		span := trace.Begin(cfg.Tracer, trace.ScopeLauncher, "worker", parent).
			WithExtra("core", strconv.Itoa(w.Core)).
			WithExtra("restarts", strconv.Itoa(w.Restarts))

		err := runWorker(ctx, cfg, w)
		if ctx.Err() != nil {
			span.End("stopped")
			return nil
		}
		switch outcome := classify(err); outcome {
		case outcomeDone:
			span.End("done")
			broker.Deliver(engine.Event{Kind: engine.EventClientExit, ClientID: w.ClientID, Time: time.Now()})
			return nil
		case outcomeRestart:
			span.End("restart")
			broker.Deliver(engine.Event{
				Kind:     engine.EventLog,
				ClientID: w.ClientID,
				Time:     time.Now(),
				Message:  fmt.Sprintf("restarting client on core %d: %v", w.Core, err),
			})
			w.Restarts++
		default:
			span.End(err.Error())
			return fmt.Errorf("worker on core %d: %w", w.Core, err)
		}
	}
}

func runWorker(ctx context.Context, cfg *Config, w Worker) error {
	cmd := exec.CommandContext(ctx, cfg.Executable, cfg.Args...)
	cmd.Env = append(append(os.Environ(), cfg.Env...), w.Environ()...)
	cmd.Stdout = cfg.Stdout
	cmd.Stderr = cfg.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = cfg.StopGrace
	return cmd.Run()
}

type outcome uint8

const (
	outcomeDone outcome = iota
	outcomeRestart
	outcomeFatal
)

// classify maps a worker's exit to what the supervisor does next. Requested
// restarts, Go runtime panics (exit 2) and deaths by signal are restarted.
func classify(err error) outcome {
	if err == nil {
		return outcomeDone
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return outcomeFatal
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return outcomeRestart
	}
	switch exitErr.ExitCode() {
	case ExitRestart, 2:
		return outcomeRestart
	default:
		return outcomeFatal
	}
}
