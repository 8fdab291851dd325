package cli

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toolbridge/toolbridge/internal/invoke"
	"github.com/toolbridge/toolbridge/internal/mcpserver"
	"github.com/toolbridge/toolbridge/internal/metrics"
	"github.com/toolbridge/toolbridge/internal/registry"
)

var serveRunner = runServe

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve configured API operations as MCP tools over stdio",
		Long: "Serve loads every configured descriptor, builds the tool registry, and speaks " +
			"the Model Context Protocol on stdin/stdout. Any descriptor failure aborts startup; " +
			"a partial registry is never served.",
		Example: strings.TrimSpace(`  toolbridge serve --config config.yaml
  toolbridge serve --config config.yaml --metrics-addr :9090 --verbose`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRunner(cmd)
		},
	}
	cmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	entries, err := registry.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	dispatcher := invoke.NewDispatcher(
		invoke.WithLogger(logger),
		invoke.WithCallTimeout(cfg.HTTP.CallTimeout.Std()),
		invoke.WithMaxResponseLog(cfg.HTTP.MaxResponseLog),
	)

	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return err
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", zap.String("addr", metricsAddr), zap.Error(err))
			}
		}()
		logger.Info("metrics exposed", zap.String("addr", metricsAddr))
	}

	return mcpserver.ServeStdio(mcpserver.New(entries, dispatcher, logger))
}
