// Package reconcile merges the event, health and economic tables onto one
// weekly axis and emits ordered weekly summaries.
//
// The event table drives the timeline. Health rows are left-joined on the
// week key and economic series are linearly interpolated onto it. Everything
// here is pure: no I/O, no shared state, safe for concurrent use.
package reconcile

import (
	"sort"
	"time"

	"github.com/okian/pausemap/internal/domain/frame"
	"github.com/okian/pausemap/internal/domain/model"
	"github.com/okian/pausemap/internal/domain/week"
)

// Table roles and the columns each must carry.
const (
	EventTable    = "event"
	HealthTable   = "health"
	EconomicTable = "economic"

	ColWeek      = "week"
	ColDate      = "date"
	ColPeriod    = "period"
	ColIndicator = "indicator"
	ColCountry   = "country"
	ColValue     = "value"
	ColEvents    = "event_count"
)

// Reconciler holds aggregation settings. The zero value is not usable; use New.
type Reconciler struct {
	aggregations map[string]Aggregator
	fallback     Aggregator
	healthPrefix string
}

// New returns a Reconciler that sums event_count and averages everything else.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		aggregations: map[string]Aggregator{ColEvents: Sum},
		fallback:     Mean,
		healthPrefix: "health_",
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile validates the three tables left to right, then aligns, interpolates
// and summarizes every event week in ascending order. A nil table skips its
// schema check. An empty event or health table yields an empty result.
func (r *Reconciler) Reconcile(event, health, economic *frame.Frame) ([]model.Summary, error) {
	if err := validate(event, health, economic); err != nil {
		return nil, err
	}
	if event.Len() == 0 || health.Len() == 0 {
		return []model.Summary{}, nil
	}

	aligned, err := r.Align(event, health)
	if err != nil {
		return nil, err
	}
	weeks := make([]time.Time, aligned.Len())
	for i := range weeks {
		weeks[i], _ = aligned.Time(i, ColWeek)
	}
	econ, err := r.Interpolate(economic, weeks)
	if err != nil {
		return nil, err
	}

	alignedCols := aligned.NumericColumns(ColWeek)
	econCols := econ.NumericColumns(ColWeek)
	out := make([]model.Summary, 0, len(weeks))
	for i, w := range weeks {
		m := make(model.Metrics, len(alignedCols)+len(econCols))
		for _, c := range alignedCols {
			m[c] = cell(aligned, i, c)
		}
		for _, c := range econCols {
			m[c] = cell(econ, i, c)
		}
		out = append(out, Summarize(w, m))
	}
	return out, nil
}

// Summarize builds the summary for one week; metrics are passed through as is.
func Summarize(w time.Time, metrics model.Metrics) model.Summary {
	return model.Summary{
		Week:    week.Start(w),
		Date:    week.Format(w),
		Metrics: metrics,
	}
}

func validate(event, health, economic *frame.Frame) error {
	if event != nil && !event.Has(ColWeek) {
		return &frame.SchemaError{Table: EventTable, Column: ColWeek}
	}
	if health != nil && healthKey(health) == "" {
		return &frame.SchemaError{Table: HealthTable, Column: ColDate}
	}
	if economic != nil {
		for _, c := range []string{ColPeriod, ColIndicator, ColValue} {
			if !economic.Has(c) {
				return &frame.SchemaError{Table: EconomicTable, Column: c}
			}
		}
	}
	return nil
}

func healthKey(f *frame.Frame) string {
	switch {
	case f.Has(ColWeek):
		return ColWeek
	case f.Has(ColDate):
		return ColDate
	default:
		return ""
	}
}

func cell(f *frame.Frame, row int, col string) *float64 {
	v, ok := f.Float(row, col)
	if !ok {
		return nil
	}
	return &v
}

// sortedWeeks returns the keys of m ascending.
func sortedWeeks[V any](m map[time.Time]V) []time.Time {
	out := make([]time.Time, 0, len(m))
	for w := range m {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
