// Package cache stores raw upstream payloads so repeated runs skip the network.
//
// Keys are slash-separated relative paths such as "gdelt/20200401.export.CSV.zip".
// Backends: local files (default), Redis and S3.
package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/pausemap/pkg/metrics"
)

// Store is a byte-oriented key/value cache.
type Store interface {
	// Get returns ErrMiss when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Has(ctx context.Context, key string) (bool, error)
}

// ValidateKey rejects empty, absolute and parent-relative keys.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// instrumented records hit, miss and error counts for a backend.
type instrumented struct {
	backend string
	next    Store
}

// Instrument wraps s so every call is counted under the backend label.
func Instrument(backend string, s Store) Store {
	return &instrumented{backend: backend, next: s}
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := i.next.Get(ctx, key)
	switch {
	case err == nil:
		metrics.RecordCacheHit(i.backend)
	case errors.Is(err, ErrMiss):
		metrics.RecordCacheMiss(i.backend)
	default:
		metrics.RecordCacheError(i.backend, "get")
	}
	return data, err
}

func (i *instrumented) Put(ctx context.Context, key string, data []byte) error {
	err := i.next.Put(ctx, key, data)
	if err != nil {
		metrics.RecordCacheError(i.backend, "put")
	}
	return err
}

func (i *instrumented) Has(ctx context.Context, key string) (bool, error) {
	ok, err := i.next.Has(ctx, key)
	if err != nil {
		metrics.RecordCacheError(i.backend, "has")
	}
	return ok, err
}
