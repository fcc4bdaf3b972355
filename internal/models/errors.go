package models

import "errors"

// Custom errors
var (
	ErrExperimentNameRequired = errors.New("experiment name is required")
	ErrInvalidExperimentType  = errors.New("invalid experiment type")
	ErrInvalidTimeout         = errors.New("experiment timeout must be positive")
	ErrNotFound               = errors.New("record not found")
	ErrDuplicateKey           = errors.New("duplicate key violation")
)
