package main

import (
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"gramfuzz/internal/observ"
	"gramfuzz/internal/trace"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Generate inputs from a grammar and parse them back",
	Long: `check loads a grammar, generates --count inputs and reports how many ways
each can be parsed. It is the quickest way to verify that the grammar runtime
is importable and the interface script works.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.SilenceUsage = true
	addGrammarFlags(checkCmd)
	checkCmd.Flags().Int("count", 10, "number of inputs to generate")
	checkCmd.Flags().Bool("expect-unambiguous", false, "fail unless every input parses exactly one way")
	checkCmd.Flags().Bool("timings", false, "print per-call timings")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cleanup, err := setupTracing(cmd, "check", false)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd, "check", false)
	if err != nil {
		return err
	}
	defer stopProfiling()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := resolveGrammarOptions(cmd, cfg, defaultGrammarFile)
	if err != nil {
		return err
	}
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("--count must not be negative")
	}
	unambiguous, err := cmd.Flags().GetBool("expect-unambiguous")
	if err != nil {
		return err
	}
	withTimings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return err
	}

	g, err := openGrammar(opts, cmd.ErrOrStderr(), trace.FromContext(cmd.Context()))
	if err != nil {
		return err
	}
	defer g.Close()

	var timer *observ.Timer
	if withTimings {
		timer = observ.NewTimer()
	}
	if err := checkGrammar(cmd.OutOrStdout(), g, count, unambiguous, timer); err != nil {
		return err
	}
	if timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	return nil
}

type checkGrammarRuntime interface {
	Generate() ([]byte, error)
	Parse([]byte) (uint32, error)
}

// checkGrammar generates count inputs and prints the parse count of each.
func checkGrammar(out io.Writer, g checkGrammarRuntime, count int, unambiguous bool, timer *observ.Timer) error {
	timed := func(name string, fn func() error) error {
		if timer == nil {
			return fn()
		}
		idx := timer.Begin(name)
		err := fn()
		timer.End(idx, "")
		return err
	}

	for i := range count {
		var input []byte
		if err := timed("next_input", func() (err error) {
			input, err = g.Generate()
			return err
		}); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		var parses uint32
		if err := timed("parse_input", func() (err error) {
			parses, err = g.Parse(input)
			return err
		}); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		fmt.Fprintf(out, "%s can be parsed %d different ways\n", displayInput(input), parses)
		if unambiguous && parses != 1 {
			return fmt.Errorf("input %s parses %d ways, expected exactly one", displayInput(input), parses)
		}
	}
	return nil
}

func displayInput(in []byte) string {
	if utf8.Valid(in) {
		return string(in)
	}
	return strconv.Quote(string(in))
}
