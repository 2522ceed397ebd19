package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
	"github.com/smart-mcp-proxy/chaosgate/internal/config"
	"github.com/smart-mcp-proxy/chaosgate/internal/logs"
	"github.com/smart-mcp-proxy/chaosgate/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chaos gate in front of an upstream or the built-in echo handler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, chaosCfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, chaosCfg)
		},
	}

	cmd.Flags().StringP("listen", "l", "", "Listen address (default 127.0.0.1:8085)")
	cmd.Flags().String("upstream", "", "Reverse proxy forwarded requests to this URL instead of echoing them")
	cmd.Flags().String("engine", "", "Router the gate is mounted on: chi or gin")
	cmd.Flags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.Flags().Bool("log-to-file", false, "Also write logs to a rotating file")
	cmd.Flags().String("log-dir", "", "Custom log directory path (overrides standard OS location)")
	cmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	cmd.Flags().String("tracing-endpoint", "", "OTLP/HTTP collector host:port; enables tracing")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, chaosCfg chaos.Config) error {
	logger, err := logs.SetupLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting chaosgate",
		zap.String("version", version),
		zap.String("log_level", cfg.Logging.Level),
		zap.Bool("log_to_file", cfg.Logging.EnableFile),
		zap.Stringer("chaos", chaosCfg))

	if cfg.Engine == config.EngineGin {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.NewServer(cfg, chaosCfg, logger, version)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
