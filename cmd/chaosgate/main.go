package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
	"github.com/smart-mcp-proxy/chaosgate/internal/config"
)

var version = "v0.1.0" // This will be injected by -ldflags during build

// rootOptions holds the flags shared by every subcommand
type rootOptions struct {
	configFile string
}

func main() {
	rootCmd := newRootCmd(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		code := exitCodeFor(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code != ExitCodeGeneralError {
			fmt.Fprintf(os.Stderr, "Exit code %d: %s\n", code, exitCodeDescription(code))
		}
		os.Exit(code)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "chaosgate",
		Short:         "ChaosGate - latency and failure injection in front of HTTP handlers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Configuration file path (JSON or YAML)")
	rootCmd.PersistentFlags().String("latency", "", "Delay before every gated request, in ms or as a duration (overrides CHAOS_LATENCY_MS)")
	rootCmd.PersistentFlags().String("error-rate", "", "Probability in [0,1] of a synthetic 500 (overrides CHAOS_ERROR_RATE)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newResolveCmd(opts))

	return rootCmd
}

// loadConfig reads host settings and resolves the chaos tiers against the
// process environment
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, chaos.Config, error) {
	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return nil, chaos.Config{}, &configError{err: err}
	}
	return cfg, chaos.Resolve(cfg.Chaos.Overrides(), os.LookupEnv), nil
}

type configError struct {
	err error
}

func (e *configError) Error() string {
	return fmt.Sprintf("failed to load configuration: %v", e.err)
}

func (e *configError) Unwrap() error {
	return e.err
}

func isConfigError(err error) bool {
	var ce *configError
	return errors.As(err, &ce)
}
