package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gramfuzz/internal/version"
)

const versionTagline = "grammars in, findings out"

// buildReport is what `gramfuzz version` prints; the flags decide which
// fields are filled.
type buildReport struct {
	Tool      string           `json:"tool"`
	Version   string           `json:"version"`
	Tagline   string           `json:"tagline"`
	Commit    string           `json:"git_commit,omitempty"`
	Built     string           `json:"build_date,omitempty"`
	Toolchain string           `json:"go,omitempty"`
	Modules   []version.Module `json:"modules,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show gramfuzz build information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("hash", false, "include git commit hash")
	versionCmd.Flags().Bool("date", false, "include build timestamp")
	versionCmd.Flags().Bool("full", false, "add the Go toolchain and every linked module")
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runVersion(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	format, _ := flags.GetString("format")
	hash, _ := flags.GetBool("hash")
	date, _ := flags.GetBool("date")
	full, _ := flags.GetBool("full")

	report := newBuildReport(hash || full, date || full, full)
	switch strings.ToLower(format) {
	case "pretty":
		report.writePretty(cmd.OutOrStdout())
		return nil
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
}

func newBuildReport(hash, date, full bool) buildReport {
	r := buildReport{Tool: "gramfuzz", Version: version.Version, Tagline: versionTagline}
	if hash {
		r.Commit = orUnknown(version.Commit())
	}
	if date {
		r.Built = orUnknown(version.BuildDate)
	}
	if full {
		r.Toolchain = orUnknown(version.Toolchain())
		r.Modules = version.Modules()
	}
	return r
}

func (r buildReport) writePretty(out io.Writer) {
	fmt.Fprintf(out, "gramfuzz %s: %s\n", version.Colored(), r.Tagline)
	for _, line := range [][2]string{{"commit", r.Commit}, {"built", r.Built}, {"go", r.Toolchain}} {
		if line[1] != "" {
			fmt.Fprintf(out, "%-7s %s\n", line[0]+":", line[1])
		}
	}
	for _, m := range r.Modules {
		fmt.Fprintf(out, "  %s %s\n", m.Path, m.Version)
	}
	if r.Commit == "" && r.Built == "" {
		fmt.Fprintln(out, "set --hash, --date, or --full for more build details")
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
