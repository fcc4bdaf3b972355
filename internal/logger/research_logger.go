// Package logger provides research pipeline logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// ResearchLogger provides dedicated logging for hypothesis and platform operations.
type ResearchLogger struct {
	*logrus.Entry
}

// NewResearchLogger creates a new research logger.
func NewResearchLogger(baseLogger *logrus.Logger) *ResearchLogger {
	return &ResearchLogger{
		Entry: baseLogger.WithField("component", "research"),
	}
}

// LogHypothesisGeneration logs a hypothesis generator call.
func (rl *ResearchLogger) LogHypothesisGeneration(focus string, requested, generated int, cacheHit bool, latencyMs float64) {
	rl.WithFields(logrus.Fields{
		"focus":      focus,
		"requested":  requested,
		"generated":  generated,
		"cache_hit":  cacheHit,
		"latency_ms": latencyMs,
	}).Info("Hypotheses generated")
}

// LogResearchCycle logs the outcome of one research cycle.
func (rl *ResearchLogger) LogResearchCycle(sessionID string, hypotheses, created, started, deferred int) {
	rl.WithFields(logrus.Fields{
		"session_id":          sessionID,
		"hypotheses":          hypotheses,
		"experiments_created": created,
		"experiments_started": started,
		"experiments_pending": deferred,
	}).Info("Research cycle completed")
}

// LogPlatformJob logs a training or backtest job state observed while polling.
func (rl *ResearchLogger) LogPlatformJob(experimentID, jobID, jobKind, state string, progress float64) {
	rl.WithFields(logrus.Fields{
		"experiment_id": experimentID,
		"job_id":        jobID,
		"job_kind":      jobKind,
		"job_state":     state,
		"progress":      progress,
	}).Debug("Platform job polled")
}

// LogPlatformError logs a failed platform interaction.
func (rl *ResearchLogger) LogPlatformError(operation, cause, reason string) {
	rl.WithFields(logrus.Fields{
		"operation":    operation,
		"error_cause":  cause,
		"error_reason": reason,
	}).Error("Platform request failed")
}
