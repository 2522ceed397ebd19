package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
)

// resolvedOutput is what `chaosgate resolve` prints
type resolvedOutput struct {
	LatencyMs int     `json:"latency_ms" yaml:"latency_ms"`
	ErrorRate float64 `json:"error_rate" yaml:"error_rate"`
	Enabled   bool    `json:"enabled" yaml:"enabled"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective chaos configuration and exit",
		Long: `Resolve the chaos configuration the way serve would: explicit overrides
(--latency, --error-rate or the config file) win, then CHAOS_LATENCY_MS and
CHAOS_ERROR_RATE, then zero. Malformed values fall through to the next tier.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, chaosCfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return writeResolved(cmd.OutOrStdout(), output, chaosCfg)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}

func writeResolved(w io.Writer, format string, cfg chaos.Config) error {
	out := resolvedOutput{
		LatencyMs: cfg.LatencyMs,
		ErrorRate: cfg.ErrorRate,
		Enabled:   cfg.Enabled(),
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
