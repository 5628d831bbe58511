package reconcile

import (
	"time"

	"github.com/okian/pausemap/internal/domain/frame"
	"github.com/okian/pausemap/internal/domain/week"
)

// Align left-joins health onto event by week key. The result has a "week"
// column of ascending, unique week keys (one per distinct event week) followed
// by the event metrics and then the health metrics. Weeks without health rows
// carry nulls. Duplicate rows within a week are folded per column by the
// configured aggregator over their non-null values.
func (r *Reconciler) Align(event, health *frame.Frame) (*frame.Frame, error) {
	if !event.Has(ColWeek) {
		return nil, &frame.SchemaError{Table: EventTable, Column: ColWeek}
	}
	hkey := ""
	var hcols []string
	if health != nil {
		if hkey = healthKey(health); hkey == "" {
			return nil, &frame.SchemaError{Table: HealthTable, Column: ColDate}
		}
		hcols = health.NumericColumns(ColWeek, ColDate)
	}

	ecols := event.NumericColumns(ColWeek)
	taken := map[string]bool{ColWeek: true}
	columns := []string{ColWeek}
	for _, c := range ecols {
		taken[c] = true
		columns = append(columns, c)
	}
	for _, c := range hcols {
		if taken[c] {
			c = r.healthPrefix + c
		}
		taken[c] = true
		columns = append(columns, c)
	}

	events, err := r.group(event, EventTable, ColWeek, ecols)
	if err != nil {
		return nil, err
	}
	var metrics map[time.Time][]*float64
	if health != nil {
		if metrics, err = r.group(health, HealthTable, hkey, hcols); err != nil {
			return nil, err
		}
	}

	out := frame.New("aligned", columns...)
	for _, w := range sortedWeeks(events) {
		row := make([]any, 0, len(columns))
		row = append(row, w)
		for _, v := range events[w] {
			row = append(row, v)
		}
		h, ok := metrics[w]
		for j := range hcols {
			if ok {
				row = append(row, h[j])
			} else {
				row = append(row, nil)
			}
		}
		if err := out.Append(row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// group buckets rows by the week of their key column and folds each column.
// A key that is not a date fails the whole table.
func (r *Reconciler) group(f *frame.Frame, table, key string, cols []string) (map[time.Time][]*float64, error) {
	raw := make(map[time.Time][][]float64)
	for i := 0; i < f.Len(); i++ {
		t, ok := f.Time(i, key)
		if !ok {
			return nil, &frame.KeyError{Table: table, Column: key, Row: i, Value: f.Value(i, key)}
		}
		w := week.Start(t)
		b, ok := raw[w]
		if !ok {
			b = make([][]float64, len(cols))
			raw[w] = b
		}
		for j, c := range cols {
			if v, ok := f.Float(i, c); ok {
				b[j] = append(b[j], v)
			}
		}
	}

	out := make(map[time.Time][]*float64, len(raw))
	for w, b := range raw {
		agg := make([]*float64, len(cols))
		for j, c := range cols {
			if len(b[j]) == 0 {
				continue
			}
			v := r.aggregator(c)(b[j])
			agg[j] = &v
		}
		out[w] = agg
	}
	return out, nil
}

func (r *Reconciler) aggregator(column string) Aggregator {
	if fn, ok := r.aggregations[column]; ok {
		return fn
	}
	return r.fallback
}
