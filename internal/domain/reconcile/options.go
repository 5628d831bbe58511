package reconcile

// Aggregator folds the non-null values of one column within one week.
// It is never called with an empty slice.
type Aggregator func(values []float64) float64

// Sum adds the values.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Mean averages the values.
func Mean(values []float64) float64 {
	return Sum(values) / float64(len(values))
}

// Last keeps the final value in input order.
func Last(values []float64) float64 {
	return values[len(values)-1]
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithAggregation sets how duplicate-week values of column are combined.
// Column is the source column name, before any collision prefix.
func WithAggregation(column string, fn Aggregator) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.aggregations[column] = fn
		}
	}
}

// WithDefaultAggregation sets the aggregator for columns without an override.
func WithDefaultAggregation(fn Aggregator) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.fallback = fn
		}
	}
}

// WithHealthPrefix changes the prefix applied to health columns that collide
// with event columns.
func WithHealthPrefix(prefix string) Option {
	return func(r *Reconciler) {
		if prefix != "" {
			r.healthPrefix = prefix
		}
	}
}
