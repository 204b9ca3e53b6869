package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/MrEthical07/authcache"
	"github.com/MrEthical07/authcache/kv"
	"github.com/MrEthical07/authcache/userdb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var memoryUsers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), rt, memoryUsers)
		},
	}
	cmd.Flags().BoolVar(&memoryUsers, "memory-users", false, "keep users in process memory instead of PostgreSQL (development only)")
	return cmd
}

func serve(ctx context.Context, rt *runtime, memoryUsers bool) error {
	cfg, logger := rt.cfg, rt.logger
	logger.Info("starting authcache server", cfg.Fields()...)

	if memoryUsers && !cfg.IsDev() {
		return errors.New("--memory-users is only allowed in development")
	}

	store, err := kv.Dial(ctx, cfg.Redis(), logger.Named("kv"))
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer store.Close()

	var users authcache.UserSource
	if memoryUsers {
		logger.Warn("using in-memory user source")
		users = userdb.NewMemory()
	} else {
		db, err := userdb.Open(ctx, cfg.Database())
		if err != nil {
			return err
		}
		defer db.Close()
		users = userdb.NewRepository(db)
	}

	engine, err := authcache.New().
		WithConfig(cfg.Engine()).
		WithStore(store).
		WithUserSource(users).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if cfg.OTelMetrics {
		stop, err := startOTelMetrics(engine, os.Stderr, cfg.OTelInterval)
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := stop(stopCtx); err != nil {
				logger.Warn("otel metrics shutdown failed", zap.Error(err))
			}
		}()
		logger.Info("otel metrics enabled", zap.Duration("interval", cfg.OTelInterval))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(engine, logger, routerOptions{exposeResetToken: cfg.ExposeResetToken}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
