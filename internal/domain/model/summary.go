// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"time"
)

// Metrics maps a metric name to its value; nil encodes as JSON null.
type Metrics map[string]*float64

// Names returns the metric names in ascending order.
func (m Metrics) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (m Metrics) Clone() Metrics {
	if m == nil {
		return nil
	}
	out := make(Metrics, len(m))
	for k, v := range m {
		if v != nil {
			c := *v
			v = &c
		}
		out[k] = v
	}
	return out
}

// Summary is one reconciled week.
// Fields mirror the {"date", "metrics"} export contract.
type Summary struct {
	Week    time.Time `json:"-" yaml:"-"`
	Date    string    `json:"date" yaml:"date"`
	Metrics Metrics   `json:"metrics" yaml:"metrics"`
}

// Run describes one processing pass of the pipeline.
type Run struct {
	ID         string    `json:"id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Weeks      int       `json:"weeks"`
	Series     int       `json:"series"`
	Output     string    `json:"output,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
