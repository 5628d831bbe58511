package config

import "errors"

// ErrLoadConfig wraps failures reading the YAML file or the PAUSEMAP_ environment.
var ErrLoadConfig = errors.New("load config failed")

// ErrInvalidConfig is returned by Validate; the message names the offending field.
var ErrInvalidConfig = errors.New("invalid config")
