package models

import (
	"time"

	"github.com/google/uuid"
)

// ExperimentStatus represents the lifecycle state of an experiment
type ExperimentStatus string

const (
	ExperimentStatusPending      ExperimentStatus = "pending"
	ExperimentStatusInitializing ExperimentStatus = "initializing"
	ExperimentStatusRunning      ExperimentStatus = "running"
	ExperimentStatusAnalyzing    ExperimentStatus = "analyzing"
	ExperimentStatusCompleted    ExperimentStatus = "completed"
	ExperimentStatusFailed       ExperimentStatus = "failed"
	ExperimentStatusCancelled    ExperimentStatus = "cancelled"
)

// InFlightStatuses are the states owned by a live execution task.
var InFlightStatuses = []ExperimentStatus{
	ExperimentStatusInitializing,
	ExperimentStatusRunning,
	ExperimentStatusAnalyzing,
}

// IsTerminal reports whether no further transition is possible
func (s ExperimentStatus) IsTerminal() bool {
	switch s {
	case ExperimentStatusCompleted, ExperimentStatusFailed, ExperimentStatusCancelled:
		return true
	default:
		return false
	}
}

// IsInFlight reports whether the status belongs to an executing experiment
func (s ExperimentStatus) IsInFlight() bool {
	switch s {
	case ExperimentStatusInitializing, ExperimentStatusRunning, ExperimentStatusAnalyzing:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status
func (s ExperimentStatus) Valid() bool {
	return s == ExperimentStatusPending || s.IsInFlight() || s.IsTerminal()
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// moving forward. Cancellation may interrupt any in-flight state.
func (s ExperimentStatus) CanTransition(next ExperimentStatus) bool {
	switch s {
	case ExperimentStatusPending:
		return next == ExperimentStatusInitializing
	case ExperimentStatusInitializing:
		return next == ExperimentStatusRunning || next == ExperimentStatusFailed || next == ExperimentStatusCancelled
	case ExperimentStatusRunning:
		return next == ExperimentStatusAnalyzing || next == ExperimentStatusFailed || next == ExperimentStatusCancelled
	case ExperimentStatusAnalyzing:
		return next == ExperimentStatusCompleted || next == ExperimentStatusFailed || next == ExperimentStatusCancelled
	default:
		return false
	}
}

// ExperimentType enumerates the kinds of research an experiment performs
type ExperimentType string

const (
	ExperimentTypeNeuroFuzzyStrategy    ExperimentType = "neuro-fuzzy-strategy"
	ExperimentTypePatternDiscovery      ExperimentType = "pattern-discovery"
	ExperimentTypeIndicatorOptimization ExperimentType = "indicator-optimization"
	ExperimentTypeRegimeDetection       ExperimentType = "regime-detection"
	ExperimentTypeCrossValidation       ExperimentType = "cross-validation"
)

// ExperimentTypes lists every supported experiment type.
var ExperimentTypes = []ExperimentType{
	ExperimentTypeNeuroFuzzyStrategy,
	ExperimentTypePatternDiscovery,
	ExperimentTypeIndicatorOptimization,
	ExperimentTypeRegimeDetection,
	ExperimentTypeCrossValidation,
}

// Valid reports whether t is a supported experiment type
func (t ExperimentType) Valid() bool {
	for _, known := range ExperimentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ErrorKind classifies why an experiment ended without results
type ErrorKind string

const (
	ErrorKindExecution          ErrorKind = "execution_error"
	ErrorKindSystemInterruption ErrorKind = "system_interruption"
	ErrorKindCancelled          ErrorKind = "cancelled"
)

// ErrorCause is the structured reason reported by a collaborator
type ErrorCause string

const (
	ErrorCauseUnknown   ErrorCause = ""
	ErrorCauseTimeout   ErrorCause = "timeout"
	ErrorCauseNetwork   ErrorCause = "network"
	ErrorCauseParameter ErrorCause = "parameter"
	ErrorCauseRemote    ErrorCause = "remote"
)

// ErrorInfo is persisted in place of results when an experiment does not complete
type ErrorInfo struct {
	Kind           ErrorKind  `json:"kind"`
	Cause          ErrorCause `json:"cause,omitempty"`
	Type           string     `json:"type"`
	Message        string     `json:"message"`
	Phase          string     `json:"phase,omitempty"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// ExperimentResults is persisted when an experiment completes
type ExperimentResults struct {
	FitnessScore       float64                `json:"fitness_score"`
	RiskProfile        string                 `json:"risk_profile"`
	PerformanceMetrics map[string]float64     `json:"performance_metrics"`
	FitnessComponents  map[string]float64     `json:"fitness_components,omitempty"`
	TrainingResults    map[string]interface{} `json:"training_results,omitempty"`
	BacktestResults    map[string]interface{} `json:"backtest_results,omitempty"`
	Insights           []string               `json:"insights"`
	Warnings           []string               `json:"warnings,omitempty"`
	Recommendations    []string               `json:"recommendations,omitempty"`
}

// Experiment is one hypothesis-to-result research trial
type Experiment struct {
	ID           uuid.UUID              `db:"id" json:"id"`
	SessionID    *uuid.UUID             `db:"session_id" json:"session_id,omitempty"`
	ParentID     *uuid.UUID             `db:"parent_id" json:"parent_id,omitempty"`
	Name         string                 `db:"name" json:"name" validate:"required,min=1,max=255"`
	Hypothesis   string                 `db:"hypothesis" json:"hypothesis"`
	Type         ExperimentType         `db:"experiment_type" json:"experiment_type" validate:"required"`
	Parameters   map[string]interface{} `db:"parameters" json:"parameters"`
	Priority     int                    `db:"priority" json:"priority"`
	TimeoutHours float64                `db:"timeout_hours" json:"timeout_hours" validate:"gt=0"`
	Status       ExperimentStatus       `db:"status" json:"status"`
	Results      *ExperimentResults     `db:"results" json:"results,omitempty"`
	ErrorInfo    *ErrorInfo             `db:"error_info" json:"error_info,omitempty"`
	CreatedAt    time.Time              `db:"created_at" json:"created_at"`
	StartedAt    *time.Time             `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time             `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt    time.Time              `db:"updated_at" json:"updated_at"`
}

// Validate performs basic validation on the experiment
func (e *Experiment) Validate() error {
	if e.Name == "" {
		return ErrExperimentNameRequired
	}
	if !e.Type.Valid() {
		return ErrInvalidExperimentType
	}
	if e.TimeoutHours <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Timeout returns the execution budget as a duration
func (e *Experiment) Timeout() time.Duration {
	return time.Duration(e.TimeoutHours * float64(time.Hour))
}

// Clone returns a copy that can be mutated without affecting e.
// Result and parameter maps are shared.
func (e *Experiment) Clone() *Experiment {
	c := *e
	if e.Results != nil {
		r := *e.Results
		c.Results = &r
	}
	if e.ErrorInfo != nil {
		ei := *e.ErrorInfo
		c.ErrorInfo = &ei
	}
	return &c
}

// ExperimentFilter selects experiments from the store
type ExperimentFilter struct {
	Statuses  []ExperimentStatus
	SessionID *uuid.UUID
	ParentID  *uuid.UUID
	Type      ExperimentType
	Limit     int
}
