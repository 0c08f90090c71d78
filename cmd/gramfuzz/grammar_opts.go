package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gramfuzz/internal/bridge"
	"gramfuzz/internal/pyrt"
	"gramfuzz/internal/trace"
)

const (
	defaultGrammarFile      = "examples/even_numbers.fan"
	defaultParseGrammarFile = "examples/even_numbers_parse.fan"
)

const pythonGuidance = "you may need to set the PYTHONPATH environment variable to the site-packages " +
	"of an environment with the grammar runtime installed, e.g. `export PYTHONPATH=$(echo .venv/lib/python*/site-packages)`, " +
	"or choose the interpreter with --python"

type grammarOptions struct {
	File      string
	Interface string
	Kwargs    map[string]string
	Python    string
}

func addGrammarFlags(cmd *cobra.Command) {
	cmd.Flags().String("grammar", "", "grammar file (default "+defaultGrammarFile+")")
	cmd.Flags().String("interface", "", "interface script exposing setup/next_input/parse_input (default: built-in)")
	cmd.Flags().StringArray("kw", nil, "keyword argument passed to the grammar session, as key=value (repeatable)")
	cmd.Flags().String("config", "", "campaign configuration file (default: "+configFileName+" in the working directory or a parent)")
}

// resolveGrammarOptions merges grammar flags with the config file; flags
// win. fallback is the grammar used when neither names one.
func resolveGrammarOptions(cmd *cobra.Command, cfg *loadedConfig, fallback string) (grammarOptions, error) {
	var opts grammarOptions
	var err error
	var file campaignConfig
	if cfg != nil {
		file = cfg.Config
	}

	if opts.File, err = setting(cmd, "grammar", cmd.Flags().GetString, cfg, file.Grammar.File, "grammar", "file"); err != nil {
		return opts, err
	}
	if opts.File == "" {
		opts.File = fallback
	}
	if opts.Interface, err = setting(cmd, "interface", cmd.Flags().GetString, cfg, file.Grammar.Interface, "grammar", "interface"); err != nil {
		return opts, err
	}
	if opts.Python, err = setting(cmd, "python", cmd.Flags().GetString, cfg, file.Runtime.Python, "runtime", "python"); err != nil {
		return opts, err
	}

	pairs, err := cmd.Flags().GetStringArray("kw")
	if err != nil {
		return opts, err
	}
	fromFlags, err := parseKwargs(pairs)
	if err != nil {
		return opts, err
	}
	opts.Kwargs = make(map[string]string, len(file.Grammar.Kwargs)+len(fromFlags))
	for k, v := range file.Grammar.Kwargs {
		opts.Kwargs[k] = v
	}
	for k, v := range fromFlags {
		opts.Kwargs[k] = v
	}
	return opts, nil
}

// grammarHandle is a bridge together with the interpreter it runs in.
type grammarHandle struct {
	*bridge.Bridge
	rt *pyrt.Runtime
}

func (g *grammarHandle) Close() error {
	return errors.Join(g.Bridge.Close(), g.rt.Close())
}

// openGrammar starts an interpreter and loads the grammar through the
// bridge. Runtime failures carry guidance on making the runtime importable.
func openGrammar(opts grammarOptions, stderr io.Writer, tracer trace.Tracer) (*grammarHandle, error) {
	rt, err := pyrt.Start(pyrt.Options{Python: opts.Python, Stderr: stderr})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pythonGuidance, err)
	}
	bopts := []bridge.Option{bridge.WithTracer(tracer)}
	var b *bridge.Bridge
	if opts.Interface != "" {
		b, err = bridge.NewWithInterface(rt, opts.Interface, opts.File, opts.Kwargs, bopts...)
	} else {
		b, err = bridge.New(rt, opts.File, opts.Kwargs, bopts...)
	}
	if err != nil {
		_ = rt.Close()
		return nil, explainInitError(err)
	}
	return &grammarHandle{Bridge: b, rt: rt}, nil
}

func explainInitError(err error) error {
	if bridge.IsInitKind(err, bridge.KindRuntime) {
		return fmt.Errorf("%s. Underlying error: %w", pythonGuidance, err)
	}
	return err
}
