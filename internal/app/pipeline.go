// Package service wires the providers, the reconciler, the repository and
// the exporter into the fetch/process pipeline driven by the CLI and the API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/pausemap/internal/adapters/export"
	"github.com/okian/pausemap/internal/adapters/repository"
	"github.com/okian/pausemap/internal/adapters/sources"
	"github.com/okian/pausemap/internal/domain/frame"
	"github.com/okian/pausemap/internal/domain/model"
	"github.com/okian/pausemap/internal/domain/reconcile"
	"github.com/okian/pausemap/internal/domain/week"
	"github.com/okian/pausemap/pkg/logger"
	"github.com/okian/pausemap/pkg/metrics"
)

// EventProvider supplies the weekly event table.
type EventProvider interface {
	Weekly(ctx context.Context) (*frame.Frame, error)
}

// HealthProvider supplies the daily or weekly health table.
type HealthProvider interface {
	Health(ctx context.Context) (*frame.Frame, error)
}

// EconomicProvider supplies the low-frequency indicator table.
type EconomicProvider interface {
	Economic(ctx context.Context) (*frame.Frame, error)
}

// Pipeline fetches sources and turns them into weekly summaries.
type Pipeline struct {
	mu sync.Mutex // held for the duration of Process

	sources  map[string]sources.Source
	order    []string
	events   EventProvider
	health   HealthProvider
	economic EconomicProvider

	reconciler *reconcile.Reconciler
	repo       repository.Store
	writer     export.Writer

	parallel int
	from, to time.Time

	statsMu sync.RWMutex
	runs    int
	failed  int
	lastRun *model.Run

	logger logger.Logger
}

// New constructs a Pipeline. Without WithRepository or WithWriter the
// corresponding Process step is skipped.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:    map[string]sources.Source{},
		reconciler: reconcile.New(),
		parallel:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get()
	}
	return p
}

// Sources returns the registered source names in registration order.
func (p *Pipeline) Sources() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p *Pipeline) source(name string) (sources.Source, error) {
	s, ok := p.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return s, nil
}

// Fetch downloads, or finds cached, every payload of one source.
func (p *Pipeline) Fetch(ctx context.Context, name string) (sources.Result, error) {
	s, err := p.source(name)
	if err != nil {
		return sources.Result{}, err
	}
	start := time.Now()
	res, err := s.Fetch(ctx)
	if err != nil {
		p.logger.Error(ctx, "fetch failed", logger.String("source", name), logger.Error(err))
		return res, fmt.Errorf("fetch %s: %w", name, err)
	}
	p.logger.Info(ctx, "fetch complete",
		logger.String("source", name),
		logger.Int("items", res.Items),
		logger.Int("cached", res.Cached),
		logger.Int("failed", res.Failed),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

// FetchAll fetches every registered source concurrently. Results keep
// registration order; the first failure cancels the rest.
func (p *Pipeline) FetchAll(ctx context.Context) ([]sources.Result, error) {
	results := make([]sources.Result, len(p.order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, name := range p.order {
		i, name := i, name
		g.Go(func() error {
			res, err := p.Fetch(gctx, name)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Sample writes the structure sample of one source and returns its path.
func (p *Pipeline) Sample(ctx context.Context, name string) (string, error) {
	s, err := p.source(name)
	if err != nil {
		return "", err
	}
	path, err := s.Sample(ctx)
	if err != nil {
		return "", fmt.Errorf("sample %s: %w", name, err)
	}
	return path, nil
}

// Process builds the three frames, reconciles them, then persists and
// exports the result. Only one Process runs at a time; a concurrent call
// fails with ErrBusy.
func (p *Pipeline) Process(ctx context.Context) (model.Run, error) {
	if !p.mu.TryLock() {
		return model.Run{}, ErrBusy
	}
	defer p.mu.Unlock()

	if p.events == nil || p.health == nil {
		return model.Run{}, fmt.Errorf("%w: event and health providers are required", ErrNotConfigured)
	}

	run := model.Run{ID: uuid.NewString(), From: p.from, To: p.to, StartedAt: time.Now().UTC()}
	log := p.logger.With(logger.String("run", run.ID))
	log.Info(ctx, "processing started")

	summaries, err := p.reconcile(ctx)
	if err != nil {
		p.recordFailure(err)
		log.Error(ctx, "processing failed", logger.Error(err))
		return model.Run{}, err
	}

	run.Weeks = len(summaries)
	run.Series = countSeries(summaries)
	if run.From.IsZero() && len(summaries) > 0 {
		run.From = summaries[0].Week
		run.To = summaries[len(summaries)-1].Week.AddDate(0, 0, 6)
	}

	if p.writer != nil {
		path, err := p.writer.Write(run.From, run.To, summaries)
		if err != nil {
			p.recordFailure(err)
			return model.Run{}, fmt.Errorf("export: %w", err)
		}
		run.Output = path
	}
	run.FinishedAt = time.Now().UTC()

	if p.repo != nil {
		if err := p.repo.Save(ctx, run, summaries); err != nil {
			p.recordFailure(err)
			if run.Output != "" {
				// The export must not outlive a run that was never stored.
				if rerr := p.writer.Remove(run.Output); rerr != nil {
					log.Warn(ctx, "failed to remove export", logger.Error(rerr))
				}
			}
			return model.Run{}, fmt.Errorf("save run %s: %w", run.ID, err)
		}
	}

	took := run.FinishedAt.Sub(run.StartedAt)
	metrics.RecordReconcileRun(run.Weeks, run.Series, float64(took.Milliseconds()))
	p.statsMu.Lock()
	p.runs++
	r := run
	p.lastRun = &r
	p.statsMu.Unlock()

	log.Info(ctx, "processing complete",
		logger.Int("weeks", run.Weeks),
		logger.Int("series", run.Series),
		logger.String("output", run.Output),
		logger.Duration("took", took),
	)
	return run, nil
}

func (p *Pipeline) reconcile(ctx context.Context) ([]model.Summary, error) {
	var event, health, economic *frame.Frame
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		event, err = p.events.Weekly(gctx)
		return err
	})
	g.Go(func() (err error) {
		health, err = p.health.Health(gctx)
		return err
	})
	if p.economic != nil {
		g.Go(func() (err error) {
			economic, err = p.economic.Economic(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	return p.reconciler.Reconcile(event, health, economic)
}

func (p *Pipeline) recordFailure(err error) {
	kind := "internal"
	switch {
	case errors.Is(err, frame.ErrSchema):
		kind = "schema"
	case errors.Is(err, sources.ErrUpstream), errors.Is(err, sources.ErrNoData):
		kind = "upstream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = "canceled"
	}
	metrics.RecordReconcileError(kind)
	p.statsMu.Lock()
	p.failed++
	p.statsMu.Unlock()
}

func countSeries(summaries []model.Summary) int {
	names := map[string]struct{}{}
	for _, s := range summaries {
		for k := range s.Metrics {
			names[k] = struct{}{}
		}
	}
	return len(names)
}

// Summaries returns the stored summaries overlapping [from, to].
func (p *Pipeline) Summaries(ctx context.Context, from, to time.Time) ([]model.Summary, error) {
	if p.repo == nil {
		return nil, fmt.Errorf("%w: no repository", ErrNotConfigured)
	}
	return p.repo.Range(ctx, from, to)
}

// Summary returns the stored summary of the week containing w.
func (p *Pipeline) Summary(ctx context.Context, w time.Time) (model.Summary, error) {
	if p.repo == nil {
		return model.Summary{}, fmt.Errorf("%w: no repository", ErrNotConfigured)
	}
	return p.repo.Get(ctx, week.Start(w))
}

// GetStats returns pipeline statistics for monitoring.
func (p *Pipeline) GetStats() map[string]interface{} {
	p.statsMu.RLock()
	stats := map[string]interface{}{
		"sources":     p.Sources(),
		"parallelism": p.parallel,
		"runs":        p.runs,
		"failedRuns":  p.failed,
	}
	if !p.from.IsZero() {
		stats["from"] = p.from.Format(week.Layout)
		stats["to"] = p.to.Format(week.Layout)
	}
	if p.lastRun != nil {
		stats["lastRun"] = *p.lastRun
	}
	p.statsMu.RUnlock()

	if p.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := p.repo.Count(ctx); err == nil {
			stats["storedWeeks"] = n
		}
		if _, ok := stats["lastRun"]; !ok {
			if r, err := p.repo.LastRun(ctx); err == nil {
				stats["lastRun"] = r
			}
		}
	}
	return stats
}
