package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/pausemap/internal/adapters/cache"
	"github.com/okian/pausemap/internal/adapters/export"
	"github.com/okian/pausemap/internal/adapters/repository"
	"github.com/okian/pausemap/internal/adapters/sources"
	service "github.com/okian/pausemap/internal/app"
	"github.com/okian/pausemap/internal/config"
	"github.com/okian/pausemap/internal/storage"
	"github.com/okian/pausemap/pkg/logger"
)

const sourceAll = "all"

// runtimeEnv is everything a command needs, built from config and flags.
type runtimeEnv struct {
	cfg      *config.Config
	layout   storage.Layout
	log      logger.Logger
	pipeline *service.Pipeline
	closers  []func() error
}

type setupOptions struct {
	repository bool
}

func setup(cmd *cobra.Command, flags *rootFlags, opts setupOptions) (*runtimeEnv, error) {
	ctx := withContext(cmd)
	cfg, err := config.Load(ctx, flags.config)
	if err != nil {
		return nil, err
	}
	if flags.storage != "" {
		cfg.StorageDir = flags.storage
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log := logger.Named("pausemap")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	layout := storage.New(cfg.StorageDir)
	if err := layout.Init(); err != nil {
		return nil, err
	}

	env := &runtimeEnv{cfg: cfg, layout: layout, log: log}
	store, closeCache, err := cache.Open(ctx, cfg, layout.Raw)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, closeCache)

	deps := sources.Deps{
		Cache:  store,
		Client: sources.NewHTTPClient(cfg.HTTPTimeout),
		Logger: log,
		Layout: layout,
	}
	srcs := make([]sources.Source, 0, len(sources.Names))
	for _, name := range sources.Names {
		s, err := sources.New(name, cfg, deps)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		srcs = append(srcs, s)
	}

	popts := []service.Option{
		service.WithLogger(log),
		service.WithSources(srcs...),
		service.WithParallelism(cfg.FetchParallel),
		service.WithWindow(cfg.Start(), cfg.End()),
	}
	if opts.repository {
		repo, err := repository.Open(ctx, cfg)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		env.closers = append(env.closers, repo.Close)
		writer, err := export.New(cfg.OutputFormat, layout)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		popts = append(popts, service.WithRepository(repo), service.WithWriter(writer))
	}
	env.pipeline = service.New(popts...)
	return env, nil
}

// Close releases backends in reverse order of acquisition.
func (e *runtimeEnv) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// selected expands the --source flag into source names.
func (e *runtimeEnv) selected(source string) ([]string, error) {
	if source == "" || source == sourceAll {
		return e.pipeline.Sources(), nil
	}
	for _, name := range e.pipeline.Sources() {
		if name == source {
			return []string{name}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (want one of %v or %q)", sources.ErrUnknownSource, source, sources.Names, sourceAll)
}

func withContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
