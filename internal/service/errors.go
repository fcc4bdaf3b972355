package service

import "errors"

// Orchestrator error taxonomy. Callers match these with errors.Is.
var (
	// ErrNotInitialized indicates an operation before Initialize completed
	ErrNotInitialized = errors.New("orchestrator not initialized")

	// ErrExperimentNotFound indicates an unknown experiment id
	ErrExperimentNotFound = errors.New("experiment not found")

	// ErrInvalidState indicates the experiment is not in the required status
	ErrInvalidState = errors.New("experiment in invalid state for operation")

	// ErrResourceLimit indicates the concurrency ceiling was reached
	ErrResourceLimit = errors.New("concurrent experiment limit reached")

	// ErrNotRunning indicates cancel of an experiment this process is not executing
	ErrNotRunning = errors.New("experiment is not running")

	// ErrShuttingDown indicates the orchestrator no longer accepts work
	ErrShuttingDown = errors.New("orchestrator is shutting down")
)
