package main

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcache/internal/serverconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const runtimeContextKey contextKey = "authcache.runtime"

// runtime is what every subcommand receives from the root's pre-run hook.
type runtime struct {
	cfg    *serverconfig.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "authcache",
		Short:         "Token authentication server with a stampede-guarded principal cache",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			boot := mustBuildLogger("info")
			cfg, err := serverconfig.Load(boot)
			if err != nil {
				return err
			}
			logger := mustBuildLogger(cfg.LogLevel)
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeContextKey, &runtime{cfg: cfg, logger: logger}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := runtimeFrom(cmd); err == nil {
				_ = rt.logger.Sync()
			}
		},
	}

	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func runtimeFrom(cmd *cobra.Command) (*runtime, error) {
	rt, ok := cmd.Context().Value(runtimeContextKey).(*runtime)
	if !ok {
		return nil, errors.New("no runtime in context")
	}
	return rt, nil
}

func mustBuildLogger(level string) *zap.Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	return logger
}
