package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pausemap/internal/domain/model"
	"github.com/okian/pausemap/internal/domain/week"
	"github.com/okian/pausemap/pkg/metrics"
)

// snapshot is an immutable, week-ordered view published after every Save.
// Readers load it without taking the write lock.
type snapshot struct {
	weeks     []time.Time
	summaries map[time.Time]model.Summary
	lastRun   *model.Run
}

// MemoryStore keeps summaries in process memory.
type MemoryStore struct {
	mu                    sync.Mutex // serializes writers
	snap                  atomic.Pointer[snapshot]
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{metricsUpdateInterval: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(&snapshot{summaries: map[time.Time]model.Summary{}})
	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)
	return s
}

// Save copies the summaries so later caller mutation cannot leak in.
func (s *MemoryStore) Save(_ context.Context, run model.Run, summaries []model.Summary) error {
	start := time.Now()
	for _, sum := range summaries {
		if sum.Week.IsZero() {
			return ErrInvalidWeek
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snap.Load()
	next := &snapshot{summaries: make(map[time.Time]model.Summary, len(old.summaries)+len(summaries))}
	for w, sum := range old.summaries {
		next.summaries[w] = sum
	}
	for _, sum := range summaries {
		w := week.Start(sum.Week)
		next.summaries[w] = model.Summary{Week: w, Date: week.Format(w), Metrics: sum.Metrics.Clone()}
	}
	next.weeks = make([]time.Time, 0, len(next.summaries))
	for w := range next.summaries {
		next.weeks = append(next.weeks, w)
	}
	sort.Slice(next.weeks, func(i, j int) bool { return next.weeks[i].Before(next.weeks[j]) })
	r := run
	next.lastRun = &r

	s.snap.Store(next)
	metrics.RecordRepositoryWriteLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

func (s *MemoryStore) Range(_ context.Context, from, to time.Time) ([]model.Summary, error) {
	snap := s.snap.Load()
	lo := sort.Search(len(snap.weeks), func(i int) bool { return !snap.weeks[i].Before(week.Start(from)) })
	out := []model.Summary{}
	for _, w := range snap.weeks[lo:] {
		if w.After(to) {
			break
		}
		sum := snap.summaries[w]
		sum.Metrics = sum.Metrics.Clone()
		out = append(out, sum)
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, w time.Time) (model.Summary, error) {
	sum, ok := s.snap.Load().summaries[week.Start(w)]
	if !ok {
		return model.Summary{}, ErrNotFound
	}
	sum.Metrics = sum.Metrics.Clone()
	return sum, nil
}

func (s *MemoryStore) LastRun(_ context.Context) (model.Run, error) {
	r := s.snap.Load().lastRun
	if r == nil {
		return model.Run{}, ErrNotFound
	}
	return *r, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	return len(s.snap.Load().weeks), nil
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRepositoryRecords(len(s.snap.Load().weeks))
			}
		}
	}()
}
