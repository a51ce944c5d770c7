package config

import "errors"

var (
	ErrInvalidDt  = errors.New("config: dt must be positive")
	ErrIterations = errors.New("config: bench iterations must be at least 1")
	ErrNoPreset   = errors.New("config: unknown preset")
)
