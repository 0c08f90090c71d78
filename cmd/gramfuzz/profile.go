package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gramfuzz/internal/prof"
)

// setupProfiling reads the persistent profiling flags and starts a
// profiling session. With ownFile every output gets name spliced in, the
// same way trace files are split per worker.
func setupProfiling(cmd *cobra.Command, name string, ownFile bool) (func(), error) {
	root := cmd.Root()

	var opts prof.Options
	var err error
	if opts.CPU, err = root.PersistentFlags().GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = root.PersistentFlags().GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = root.PersistentFlags().GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return func() {}, nil
	}
	if ownFile {
		opts.CPU = traceFileFor(opts.CPU, name)
		opts.Mem = traceFileFor(opts.Mem, name)
		opts.Trace = traceFileFor(opts.Trace, name)
	}

	session, err := prof.Start(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start profiling: %w", err)
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", err)
		}
	}, nil
}
