// Package logger provides experiment lifecycle logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// ExperimentLogger provides dedicated logging for experiment lifecycle events.
type ExperimentLogger struct {
	*logrus.Entry
}

// NewExperimentLogger creates a new experiment logger.
func NewExperimentLogger(baseLogger *logrus.Logger) *ExperimentLogger {
	return &ExperimentLogger{
		Entry: baseLogger.WithField("component", "experiment"),
	}
}

// LogExperimentCreated logs a newly persisted experiment.
func (el *ExperimentLogger) LogExperimentCreated(experimentID, name, experimentType string, priority int, timeoutHours float64) {
	el.WithFields(logrus.Fields{
		"experiment_id":   experimentID,
		"experiment_name": name,
		"experiment_type": experimentType,
		"priority":        priority,
		"timeout_hours":   timeoutHours,
	}).Info("Experiment created")
}

// LogStateTransition logs a persisted status change.
func (el *ExperimentLogger) LogStateTransition(experimentID, fromStatus, toStatus string) {
	el.WithFields(logrus.Fields{
		"experiment_id": experimentID,
		"from_status":   fromStatus,
		"to_status":     toStatus,
	}).Info("Experiment state transition")
}

// LogExperimentCompleted logs a successful run with its score.
func (el *ExperimentLogger) LogExperimentCompleted(experimentID string, fitnessScore float64, riskProfile string, durationSeconds float64) {
	el.WithFields(logrus.Fields{
		"experiment_id":    experimentID,
		"fitness_score":    fitnessScore,
		"risk_profile":     riskProfile,
		"duration_seconds": durationSeconds,
	}).Info("Experiment completed")
}

// LogExperimentFailed logs a failed run.
func (el *ExperimentLogger) LogExperimentFailed(experimentID, phase, errorType, message string, elapsedSeconds float64) {
	el.WithFields(logrus.Fields{
		"experiment_id":   experimentID,
		"phase":           phase,
		"error_type":      errorType,
		"error_message":   message,
		"elapsed_seconds": elapsedSeconds,
	}).Error("Experiment failed")
}

// LogAdmissionRejected logs a start refused by the concurrency ceiling.
func (el *ExperimentLogger) LogAdmissionRejected(experimentID string, running, ceiling int) {
	el.WithFields(logrus.Fields{
		"experiment_id": experimentID,
		"running":       running,
		"ceiling":       ceiling,
	}).Warn("Experiment start rejected: concurrency ceiling reached")
}
