package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"fortio.org/safecast"
	"github.com/spf13/cobra"

	"gramfuzz/internal/campaign"
	"gramfuzz/internal/engine"
	"gramfuzz/internal/launcher"
	"gramfuzz/internal/monitor"
	"gramfuzz/internal/trace"
)

var fuzzCmd = &cobra.Command{
	Use:   "fuzz",
	Short: "Run a grammar-driven fuzzing campaign on one worker per core",
	Long: `fuzz starts a broker and one worker process per selected core. Modes:

  mutator       every scheduled input is replaced by a fresh grammar input
  stage         each grammar input is evaluated, then havoc-mutated clones of it
  differential  the native harness and the grammar parser must agree

Objectives are written to --crashes. Interrupting the campaign stops every
worker; workers that crash are restarted and resume where they died.`,
	Args: cobra.NoArgs,
	RunE: runFuzz,
}

func init() {
	fuzzCmd.SilenceUsage = true
	registerFuzzFlags(fuzzCmd)
}

func registerFuzzFlags(cmd *cobra.Command) {
	addGrammarFlags(cmd)
	cmd.Flags().String("mode", string(campaign.ModeStage), "campaign (mutator|stage|differential)")
	cmd.Flags().String("cores", "all", `cores to run workers on, e.g. "all" or "0,2-4"`)
	cmd.Flags().Int("broker-port", launcher.DefaultBrokerPort, "local port of the event broker")
	cmd.Flags().Int("min-iterations", campaign.DefaultMinIterations, "stage mode: fewest mutated clones per grammar input")
	cmd.Flags().Int("max-iterations", campaign.DefaultMaxIterations, "stage mode: most mutated clones per grammar input")
	cmd.Flags().Uint64("iters", 0, "fuzzing cycles per worker (0 runs until interrupted)")
	cmd.Flags().Bool("violent-crash", false, "panic on malformed inputs instead of reporting a crash")
	cmd.Flags().Bool("print-inputs", false, "hexdump every harness input (silences the monitor)")
	cmd.Flags().Bool("normalize", false, "apply Unicode NFKC to inputs before the harness parses them")
	cmd.Flags().String("crashes", "./crashes", "directory receiving objectives")
	cmd.Flags().String("state-dir", "", "directory for worker state snapshots (default: a gramfuzz directory under the system temp dir)")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9090")
	cmd.Flags().String("ui", "auto", "live dashboard (auto|on|off)")
}

type fuzzOptions struct {
	grammar       grammarOptions
	mode          campaign.Mode
	cores         launcher.Cores
	brokerPort    int
	minIterations int
	maxIterations int
	iters         uint64
	violentCrash  bool
	printInputs   bool
	normalize     bool
	quiet         bool
	crashes       string
	stateDir      string
	metricsAddr   string
	ui            dashboardMode
}

func resolveFuzzOptions(cmd *cobra.Command) (fuzzOptions, error) {
	var opts fuzzOptions
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return opts, err
	}
	var file fuzzConfig
	if cfg != nil {
		file = cfg.Config.Fuzz
	}
	flags := cmd.Flags()

	modeStr, err := setting(cmd, "mode", flags.GetString, cfg, file.Mode, "fuzz", "mode")
	if err != nil {
		return opts, err
	}
	if opts.mode, err = campaign.ParseMode(modeStr); err != nil {
		return opts, err
	}
	fallback := defaultGrammarFile
	if opts.mode == campaign.ModeDifferential {
		fallback = defaultParseGrammarFile
	}
	if opts.grammar, err = resolveGrammarOptions(cmd, cfg, fallback); err != nil {
		return opts, err
	}

	coresStr, err := setting(cmd, "cores", flags.GetString, cfg, file.Cores, "fuzz", "cores")
	if err != nil {
		return opts, err
	}
	if opts.cores, err = launcher.ParseCores(coresStr); err != nil {
		return opts, err
	}
	if opts.brokerPort, err = setting(cmd, "broker-port", flags.GetInt, cfg, file.BrokerPort, "fuzz", "broker_port"); err != nil {
		return opts, err
	}
	if opts.minIterations, err = setting(cmd, "min-iterations", flags.GetInt, cfg, file.MinIterations, "fuzz", "min_iterations"); err != nil {
		return opts, err
	}
	if opts.maxIterations, err = setting(cmd, "max-iterations", flags.GetInt, cfg, file.MaxIterations, "fuzz", "max_iterations"); err != nil {
		return opts, err
	}
	if opts.minIterations < 0 || opts.maxIterations < opts.minIterations {
		return opts, fmt.Errorf("invalid iteration bounds: --min-iterations %d, --max-iterations %d", opts.minIterations, opts.maxIterations)
	}
	fileIters, err := safecast.Conv[uint64](file.Iters)
	if err != nil {
		return opts, fmt.Errorf("[fuzz].iters: %w", err)
	}
	if opts.iters, err = setting(cmd, "iters", flags.GetUint64, cfg, fileIters, "fuzz", "iters"); err != nil {
		return opts, err
	}
	if opts.violentCrash, err = setting(cmd, "violent-crash", flags.GetBool, cfg, file.ViolentCrash, "fuzz", "violent_crash"); err != nil {
		return opts, err
	}
	if opts.printInputs, err = setting(cmd, "print-inputs", flags.GetBool, cfg, file.PrintInputs, "fuzz", "print_inputs"); err != nil {
		return opts, err
	}
	if opts.normalize, err = setting(cmd, "normalize", flags.GetBool, cfg, file.Normalize, "fuzz", "normalize"); err != nil {
		return opts, err
	}
	if opts.crashes, err = setting(cmd, "crashes", flags.GetString, cfg, file.Crashes, "fuzz", "crashes"); err != nil {
		return opts, err
	}
	if opts.stateDir, err = setting(cmd, "state-dir", flags.GetString, cfg, file.StateDir, "fuzz", "state_dir"); err != nil {
		return opts, err
	}
	if opts.stateDir == "" {
		opts.stateDir = filepath.Join(os.TempDir(), "gramfuzz")
	}
	if opts.metricsAddr, err = setting(cmd, "metrics-addr", flags.GetString, cfg, file.MetricsAddr, "fuzz", "metrics_addr"); err != nil {
		return opts, err
	}
	uiStr, err := setting(cmd, "ui", flags.GetString, cfg, file.UI, "fuzz", "ui")
	if err != nil {
		return opts, err
	}
	if opts.ui, err = parseDashboardMode(uiStr); err != nil {
		return opts, err
	}
	if opts.quiet, err = flags.GetBool("quiet"); err != nil {
		return opts, err
	}
	return opts, nil
}

func runFuzz(cmd *cobra.Command, args []string) error {
	opts, err := resolveFuzzOptions(cmd)
	if err != nil {
		return err
	}
	w, isWorker, err := launcher.WorkerFromEnv()
	if err != nil {
		return err
	}
	if isWorker {
		return runWorker(cmd, opts, w)
	}
	return runSupervisor(cmd, opts)
}

func runSupervisor(cmd *cobra.Command, opts fuzzOptions) error {
	cleanup, err := setupTracing(cmd, "supervisor", false)
	if err != nil {
		return err
	}
	defer cleanup()
	tracer := trace.FromContext(cmd.Context())
	out := cmd.OutOrStdout()

	// Пробная загрузка грамматики: ошибки окружения видны до старта воркеров.
	probe, err := openGrammar(opts.grammar, cmd.ErrOrStderr(), tracer)
	if err != nil {
		return err
	}
	if err := probe.Close(); err != nil {
		return err
	}
	for _, dir := range []string{opts.crashes, opts.stateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	useTUI := useDashboard(opts.ui, opts.quiet, os.Stdout)
	var metrics *monitor.Metrics
	if opts.metricsAddr != "" {
		metrics = monitor.NewMetrics()
		go func() {
			if err := metrics.Serve(ctx, opts.metricsAddr); err != nil {
				trace.Errorf(tracer, trace.ScopeLauncher, "metrics", "%v", err)
				fmt.Fprintf(cmd.ErrOrStderr(), "metrics: %v\n", err)
			}
		}()
	}
	mon := monitor.New(monitor.Options{
		Out:     out,
		Quiet:   opts.quiet || opts.printInputs || useTUI,
		Metrics: metrics,
	})

	cfg := launcher.Config{
		Cores:      opts.cores,
		BrokerAddr: "127.0.0.1:" + strconv.Itoa(opts.brokerPort),
		Args:       os.Args[1:],
		Stdout:     out,
		Stderr:     cmd.ErrOrStderr(),
		OnEvent:    mon.Handle,
		Tracer:     tracer,
	}

	if useTUI {
		logFile, err := os.Create(filepath.Join(opts.stateDir, "workers.log"))
		if err != nil {
			return err
		}
		defer logFile.Close()
		cfg.Stdout, cfg.Stderr = logFile, logFile
		title := fmt.Sprintf("gramfuzz %s on %d cores", opts.mode, len(opts.cores))
		err = runWithDashboard(ctx, stop, title, len(opts.cores), mon, func(ctx context.Context) error {
			return launcher.Launch(ctx, cfg)
		})
		return finishCampaign(out, err)
	}

	err = launcher.Launch(ctx, cfg)
	mon.Close()
	return finishCampaign(out, err)
}

func finishCampaign(out io.Writer, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrShuttingDown):
		fmt.Fprintln(out, "Fuzzing stopped by user. Good bye.")
		return nil
	default:
		return fmt.Errorf("failed to run launcher: %w", err)
	}
}
