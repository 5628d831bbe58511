package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound    = errors.New("summary not found")
	ErrInvalidWeek = errors.New("invalid summary week")
	ErrUnknownKind = errors.New("unknown repository")
)
