package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/pausemap/internal/adapters/http/api"
	"github.com/okian/pausemap/pkg/logger"
	"github.com/okian/pausemap/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 5 * time.Minute // POST /runs is synchronous
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var processOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored summaries, stats and metrics over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(withContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			env, err := setup(cmd, flags, setupOptions{repository: true})
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			go startSystemMetricsUpdater(ctx)

			if processOnStart {
				if _, err := env.pipeline.Process(ctx); err != nil {
					env.log.Error(ctx, "initial run failed", logger.Error(err))
				}
			}
			return serve(ctx, env, api.NewServer(env.pipeline, env.pipeline, api.WithAllowedOrigins(env.cfg.CORSOrigins...)).Handler())
		},
	}
	cmd.Flags().BoolVar(&processOnStart, "process", false, "run the pipeline once before serving")
	return cmd
}

func serve(ctx context.Context, env *runtimeEnv, h http.Handler) error {
	srv := &http.Server{
		Addr:              env.cfg.Addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		env.log.Info(ctx, "starting HTTP server", logger.String("addr", env.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%w: %v", api.ErrServe, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	env.log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		env.log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	env.log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
