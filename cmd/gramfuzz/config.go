package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"gramfuzz/internal/campaign"
)

const configFileName = "gramfuzz.toml"

type campaignConfig struct {
	Grammar grammarConfig `toml:"grammar"`
	Runtime runtimeConfig `toml:"runtime"`
	Fuzz    fuzzConfig    `toml:"fuzz"`
}

type grammarConfig struct {
	File      string            `toml:"file"`
	Interface string            `toml:"interface"`
	Kwargs    map[string]string `toml:"kwargs"`
}

type runtimeConfig struct {
	Python string `toml:"python"`
}

type fuzzConfig struct {
	Mode          string `toml:"mode"`
	Cores         string `toml:"cores"`
	BrokerPort    int    `toml:"broker_port"`
	MinIterations int    `toml:"min_iterations"`
	MaxIterations int    `toml:"max_iterations"`
	Iters         int64  `toml:"iters"`
	ViolentCrash  bool   `toml:"violent_crash"`
	PrintInputs   bool   `toml:"print_inputs"`
	Normalize     bool   `toml:"normalize"`
	Crashes       string `toml:"crashes"`
	StateDir      string `toml:"state_dir"`
	MetricsAddr   string `toml:"metrics_addr"`
	UI            string `toml:"ui"`
}

// loadedConfig is a decoded gramfuzz.toml together with which keys it set.
// A nil *loadedConfig defines nothing.
type loadedConfig struct {
	Path   string
	Config campaignConfig
	meta   toml.MetaData
}

func (c *loadedConfig) defined(key ...string) bool {
	return c != nil && c.meta.IsDefined(key...)
}

// findConfigFile looks for gramfuzz.toml in startDir and its parents.
func findConfigFile(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadCampaignConfig(path string) (*loadedConfig, error) {
	var cfg campaignConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("grammar") && (!meta.IsDefined("grammar", "file") || strings.TrimSpace(cfg.Grammar.File) == "") {
		return nil, fmt.Errorf("%s: missing [grammar].file", path)
	}
	if meta.IsDefined("fuzz", "mode") {
		if _, err := campaign.ParseMode(cfg.Fuzz.Mode); err != nil {
			return nil, fmt.Errorf("%s: [fuzz].mode: %w", path, err)
		}
	}
	if meta.IsDefined("fuzz", "broker_port") && (cfg.Fuzz.BrokerPort < 1 || cfg.Fuzz.BrokerPort > 65535) {
		return nil, fmt.Errorf("%s: [fuzz].broker_port %d out of range", path, cfg.Fuzz.BrokerPort)
	}
	if cfg.Fuzz.MinIterations < 0 || cfg.Fuzz.MaxIterations < 0 || cfg.Fuzz.Iters < 0 {
		return nil, fmt.Errorf("%s: [fuzz] iteration counts must not be negative", path)
	}
	if meta.IsDefined("fuzz", "min_iterations") && meta.IsDefined("fuzz", "max_iterations") &&
		cfg.Fuzz.MinIterations > cfg.Fuzz.MaxIterations {
		return nil, fmt.Errorf("%s: [fuzz].min_iterations exceeds max_iterations", path)
	}
	// Relative paths in the file are relative to the file.
	root := filepath.Dir(path)
	for _, p := range []*string{&cfg.Grammar.File, &cfg.Grammar.Interface, &cfg.Fuzz.Crashes, &cfg.Fuzz.StateDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, filepath.FromSlash(*p))
		}
	}
	return &loadedConfig{Path: path, Config: cfg, meta: meta}, nil
}

// resolveConfig loads --config, or gramfuzz.toml found from the working
// directory upwards. No file is not an error.
func resolveConfig(cmd *cobra.Command) (*loadedConfig, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		found, ok, err := findConfigFile(".")
		if err != nil || !ok {
			return nil, err
		}
		path = found
	}
	return loadCampaignConfig(path)
}

// setting returns the flag value when the flag was given or the file does
// not define key, and the file value otherwise.
func setting[T any](cmd *cobra.Command, flag string, get func(string) (T, error), cfg *loadedConfig, fromFile T, key ...string) (T, error) {
	if !cmd.Flags().Changed(flag) && cfg.defined(key...) {
		return fromFile, nil
	}
	return get(flag)
}

// parseKwargs turns repeated k=v flags into a map.
func parseKwargs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --kw %q (expected key=value)", kv)
		}
		out[k] = v
	}
	return out, nil
}
