// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogCancellation logs an operator or shutdown initiated cancellation.
func (al *AuditLogger) LogCancellation(experimentID, status, reason string) {
	al.WithFields(logrus.Fields{
		"experiment_id": experimentID,
		"status":        status,
		"reason":        reason,
	}).Info("Experiment cancellation requested")
}

// LogRecoverySweep logs experiments failed by the startup sweep.
func (al *AuditLogger) LogRecoverySweep(recovered int, experimentIDs []string) {
	al.WithFields(logrus.Fields{
		"recovered":      recovered,
		"experiment_ids": experimentIDs,
	}).Warn("Interrupted experiments marked as failed")
}

// LogShutdown logs orchestrator teardown with the in-flight set.
func (al *AuditLogger) LogShutdown(reason string, systemState map[string]interface{}) {
	al.WithFields(logrus.Fields{
		"reason":       reason,
		"system_state": systemState,
	}).Warn("Orchestrator shutdown initiated")
}
