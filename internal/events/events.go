// Package events fans experiment lifecycle events out to subscribers.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
)

// Type names an event
type Type string

const (
	TypeExperimentCreated    Type = "experiment.created"
	TypeExperimentTransition Type = "experiment.transition"
	TypeKnowledgeRecorded    Type = "knowledge.recorded"
)

// Event is a single lifecycle notification
type Event struct {
	Type           Type                    `json:"type"`
	ExperimentID   uuid.UUID               `json:"experiment_id"`
	ExperimentName string                  `json:"experiment_name,omitempty"`
	From           models.ExperimentStatus `json:"from,omitempty"`
	To             models.ExperimentStatus `json:"to,omitempty"`
	Payload        map[string]interface{}  `json:"payload,omitempty"`
	Timestamp      time.Time               `json:"timestamp"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// named is implemented by publishers that label their failures.
type named interface {
	Name() string
}

// MultiPublisher delivers to every sink. A failing sink never blocks the others.
type MultiPublisher struct {
	sinks   []Publisher
	logger  *logrus.Logger
	metrics *metrics.Registry
}

// NewMultiPublisher creates a fan-out publisher
func NewMultiPublisher(logger *logrus.Logger, reg *metrics.Registry, sinks ...Publisher) *MultiPublisher {
	return &MultiPublisher{sinks: sinks, logger: logger, metrics: reg}
}

// Publish sends event to all sinks and joins their errors
func (m *MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			name := "unknown"
			if n, ok := sink.(named); ok {
				name = n.Name()
			}
			m.metrics.RecordEventPublishFailure(name)
			m.logger.WithError(err).WithFields(logrus.Fields{
				"sink":          name,
				"event_type":    event.Type,
				"experiment_id": event.ExperimentID,
			}).Warn("Failed to publish event")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
