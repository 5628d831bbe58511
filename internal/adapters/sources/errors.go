package sources

import (
	"errors"
	"fmt"

	"github.com/okian/pausemap/internal/adapters/cache"
)

// Sentinel errors for providers.
var (
	ErrUpstream      = errors.New("upstream request failed")
	ErrCache         = errors.New("cache write failed")
	ErrPayload       = errors.New("malformed payload")
	ErrNoData        = errors.New("no data fetched")
	ErrUnknownSource = errors.New("unknown source")
)

// StatusError is returned for non-200 upstream responses.
type StatusError struct {
	Source string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned HTTP %d", e.Source, e.URL, e.Code)
}

// Is makes a StatusError match ErrUpstream.
func (e *StatusError) Is(target error) bool { return target == ErrUpstream }

func isMiss(err error) bool { return errors.Is(err, cache.ErrMiss) }
