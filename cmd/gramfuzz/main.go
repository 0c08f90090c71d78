package main

import (
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/launcher"
	"gramfuzz/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "gramfuzz",
	Short: "Grammar-driven fuzzing campaigns",
	Long: `gramfuzz drives a grammar runtime as an input generator, a mutator and a
parse oracle for fuzzing campaigns that run one worker per core`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyColorMode(cmd)
	},
}

// main registers subcommands and persistent flags and executes the root
// command. A worker asking for a restart exits with launcher.ExitRestart,
// any other error with status 1.
func main() {
	// Версия для автоматического флага --version
	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(fuzzCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress monitor output")
	rootCmd.PersistentFlags().String("python", "", "python interpreter hosting the grammar runtime (default $GRAMFUZZ_PYTHON or python3)")
	rootCmd.PersistentFlags().String("trace", "", "write trace events to file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer capacity for --trace-mode=ring|both")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat trace event at this interval (0 disables)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file (split per worker)")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit (split per worker)")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file (split per worker)")

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, engine.ErrRestartRequired) {
			os.Exit(launcher.ExitRestart)
		}
		os.Exit(1)
	}
}

func applyColorMode(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto", "":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return errors.New("invalid --color value " + mode + " (expected auto|on|off)")
	}
	return nil
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
