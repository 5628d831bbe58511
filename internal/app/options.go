package service

import (
	"time"

	"github.com/okian/pausemap/internal/adapters/export"
	"github.com/okian/pausemap/internal/adapters/repository"
	"github.com/okian/pausemap/internal/adapters/sources"
	"github.com/okian/pausemap/internal/domain/reconcile"
	"github.com/okian/pausemap/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSources registers fetchable sources. A source that also provides a
// frame (weekly events, health or economic) becomes that frame's provider.
func WithSources(srcs ...sources.Source) Option {
	return func(p *Pipeline) {
		for _, s := range srcs {
			if s == nil {
				continue
			}
			if _, ok := p.sources[s.Name()]; !ok {
				p.order = append(p.order, s.Name())
			}
			p.sources[s.Name()] = s
			if e, ok := s.(EventProvider); ok {
				p.events = e
			}
			if h, ok := s.(HealthProvider); ok {
				p.health = h
			}
			if w, ok := s.(EconomicProvider); ok {
				p.economic = w
			}
		}
	}
}

// WithEventProvider overrides the event frame provider.
func WithEventProvider(e EventProvider) Option {
	return func(p *Pipeline) { p.events = e }
}

// WithHealthProvider overrides the health frame provider.
func WithHealthProvider(h HealthProvider) Option {
	return func(p *Pipeline) { p.health = h }
}

// WithEconomicProvider overrides the economic frame provider.
func WithEconomicProvider(e EconomicProvider) Option {
	return func(p *Pipeline) { p.economic = e }
}

// WithReconciler sets the reconciler used by Process.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.reconciler = r
		}
	}
}

// WithRepository persists every processed run.
func WithRepository(r repository.Store) Option {
	return func(p *Pipeline) { p.repo = r }
}

// WithWriter exports every processed run.
func WithWriter(w export.Writer) Option {
	return func(p *Pipeline) { p.writer = w }
}

// WithParallelism bounds concurrent source fetches.
func WithParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.parallel = n
		}
	}
}

// WithWindow sets the inclusive date range recorded on each run.
func WithWindow(from, to time.Time) Option {
	return func(p *Pipeline) {
		p.from, p.to = from, to
	}
}
