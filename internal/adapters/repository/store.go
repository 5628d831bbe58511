// Package repository persists reconciled weekly summaries and run records.
package repository

import (
	"context"
	"time"

	"github.com/okian/pausemap/internal/domain/model"
)

// Store provides read/write access to reconciled summaries.
type Store interface {
	// Save upserts every summary by week and records the run that produced them.
	Save(ctx context.Context, run model.Run, summaries []model.Summary) error

	// Range returns summaries with from <= week <= to in ascending week order.
	Range(ctx context.Context, from, to time.Time) ([]model.Summary, error)

	// Get returns the summary of one week.
	// Returns ErrNotFound if the week is unknown.
	Get(ctx context.Context, week time.Time) (model.Summary, error)

	// LastRun returns the most recently finished run, or ErrNotFound.
	LastRun(ctx context.Context) (model.Run, error)

	// Count returns the number of stored weeks.
	Count(ctx context.Context) (int, error)

	Close() error
}
