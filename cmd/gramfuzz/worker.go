package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gramfuzz/internal/campaign"
	"gramfuzz/internal/engine"
	"gramfuzz/internal/harness"
	"gramfuzz/internal/launcher"
	"gramfuzz/internal/trace"
)

// runWorker is one fuzzing client under the launcher. It returns
// engine.ErrRestartRequired when the harness crashed hard enough that the
// process must be replaced; the state snapshot lets the next incarnation
// resume.
func runWorker(cmd *cobra.Command, opts fuzzOptions, w launcher.Worker) error {
	name := fmt.Sprintf("worker-%d", w.Core)
	cleanup, err := setupTracing(cmd, name, true)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd, name, true)
	if err != nil {
		return err
	}
	defer stopProfiling()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	tracer := trace.FromContext(ctx)

	// Цикл фаззинга должен идти в той же горутине, что и привязка к ядру.
	if err := launcher.PinToCore(w.Core); err != nil {
		trace.Errorf(tracer, trace.ScopeWorker, "affinity", "core %d: %v", w.Core, err)
	}
	span := trace.Begin(tracer, trace.ScopeWorker, name, 0).
		WithExtra("client", w.ClientID).
		WithExtra("mode", string(opts.mode))

	client, err := launcher.Dial(ctx, w.Broker, w.ClientID)
	if err != nil {
		span.End("error")
		return err
	}
	defer client.OnShutdown()

	g, err := openGrammar(opts.grammar, cmd.ErrOrStderr(), tracer)
	if err != nil {
		span.End("error")
		return err
	}
	defer g.Close()

	policy := harness.Policy{ViolentCrash: opts.violentCrash, Normalize: opts.normalize}
	if opts.printInputs {
		policy.Dump = cmd.OutOrStdout()
	}
	c, err := campaign.Build(campaign.Options{
		Mode:          opts.mode,
		Grammar:       g,
		MinIterations: opts.minIterations,
		MaxIterations: opts.maxIterations,
		Policy:        policy,
		Tracer:        tracer,
	})
	if err != nil {
		span.End("error")
		return err
	}

	solutions, err := engine.NewOnDiskCorpus(opts.crashes)
	if err != nil {
		span.End("error")
		return err
	}
	store, err := engine.OpenStateFile(w.StateFile(opts.stateDir))
	if err != nil {
		span.End("error")
		return err
	}
	state, err := engine.NewState(engine.StateConfig{Solutions: solutions, StateFile: store})
	if err != nil {
		span.End("error")
		return err
	}
	if state.Restored() {
		trace.Pointf(tracer, trace.ScopeWorker, "restored", "%d executions, %d corpus entries", state.Executions(), state.Corpus().Count())
	}

	err = c.Run(ctx, state, client, opts.iters)
	switch {
	case errors.Is(err, engine.ErrShuttingDown):
		span.End("done")
		return state.Remove()
	case errors.Is(err, engine.ErrRestartRequired):
		span.End("restart")
		// Хвост кольцевого буфера показывает, что происходило перед падением.
		var recent bytes.Buffer
		if wrote, _ := trace.DumpRecent(tracer, &recent, trace.FormatText); wrote {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: last trace events before restart:\n%s", name, recent.Bytes())
		}
		return err
	case ctx.Err() != nil:
		span.End("interrupted")
		return nil
	default:
		span.End(err.Error())
		return err
	}
}
