package service

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrUnknownSource = errors.New("unknown source")
	ErrNotConfigured = errors.New("pipeline not configured")
	ErrBusy          = errors.New("a run is already in progress")
)
