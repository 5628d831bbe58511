package cache

import "errors"

// Sentinel errors for cache operations.
var (
	ErrMiss        = errors.New("cache miss")
	ErrInvalidKey  = errors.New("invalid cache key")
	ErrUnknownKind = errors.New("unknown cache backend")
)
