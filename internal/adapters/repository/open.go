package repository

import (
	"context"
	"fmt"

	"github.com/okian/pausemap/internal/config"
)

// Open builds the configured repository.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Repository {
	case "", "memory":
		return NewMemoryStore(ctx), nil
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Repository)
	}
}
