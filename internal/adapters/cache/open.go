package cache

import (
	"context"
	"fmt"

	"github.com/okian/pausemap/internal/config"
)

// Open builds the configured backend, wrapped with metrics. rawDir is used by
// the file backend. The returned closer is never nil.
func Open(ctx context.Context, cfg *config.Config, rawDir string) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.CacheBackend {
	case "", "file":
		return Instrument("file", NewFileStore(rawDir)), noop, nil
	case "redis":
		rs, err := DialRedis(ctx, cfg.RedisAddr, WithRedisPrefix(cfg.RedisPrefix), WithRedisTTL(cfg.CacheTTL))
		if err != nil {
			return nil, noop, err
		}
		return Instrument("redis", rs), rs.Close, nil
	case "s3":
		ss, err := NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
		if err != nil {
			return nil, noop, err
		}
		return Instrument("s3", ss), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.CacheBackend)
	}
}
