package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/toolbridge/toolbridge/internal/config"
)

// bootstrap resolves the shared --config/--verbose flags into a validated
// configuration and a logger. Logs go to stderr: stdout belongs to the MCP
// transport when serving.
func bootstrap(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := buildLogger(level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		lvl = zapcore.InfoLevel
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
