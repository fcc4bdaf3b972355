// Package platform talks to the remote training and backtesting platform.
package platform

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobKind distinguishes the two remote job types
type JobKind string

const (
	JobKindTraining JobKind = "training"
	JobKindBacktest JobKind = "backtest"
)

// JobState is the remote job lifecycle as seen by a status poll
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	// JobStateUnknown means the poll could not determine the state.
	JobStateUnknown JobState = "unknown"
)

// IsTerminal reports whether the job will not change state again
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// JobRequest describes a job submission
type JobRequest struct {
	Kind           JobKind                `json:"kind"`
	ExperimentID   uuid.UUID              `json:"experiment_id"`
	ExperimentType string                 `json:"experiment_type"`
	Parameters     map[string]interface{} `json:"parameters"`
	// ModelID references the trained model for backtest jobs.
	ModelID string `json:"model_id,omitempty"`
}

// Job is a submitted remote job
type Job struct {
	ID          string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobStatus is the result of one status poll. Err is set only when State is
// JobStateUnknown.
type JobStatus struct {
	State    JobState `json:"state"`
	Progress float64  `json:"progress"`
	Message  string   `json:"message,omitempty"`
	Err      error    `json:"-"`
}

// Client is the contract shared by the HTTP client and the simulator
type Client interface {
	SubmitJob(ctx context.Context, req JobRequest) (*Job, error)
	JobStatus(ctx context.Context, jobID string) JobStatus
	JobResults(ctx context.Context, jobID string) (map[string]interface{}, error)
	StopJob(ctx context.Context, jobID string) error
	HealthCheck(ctx context.Context) error
}
