package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// messageWriter is the subset of kafka.Writer used by KafkaPublisher
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by experiment id
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
// Writes are asynchronous; delivery failures are logged by the writer's
// completion callback rather than returned from Publish.
func NewKafkaPublisher(brokers []string, topic string, logger *logrus.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 100 * time.Millisecond,
		Async:        true,
		Completion:   deliveryLogger(logger, topic),
	}
	return &KafkaPublisher{writer: writer, topic: topic}, nil
}

func deliveryLogger(logger *logrus.Logger, topic string) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		logger.WithError(err).WithFields(logrus.Fields{
			"topic":    topic,
			"messages": len(msgs),
		}).Warn("Kafka delivery failed")
	}
}

// Name labels this sink in metrics
func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish writes one message; the experiment id is the key so that events
// for the same experiment stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ExperimentID.String()),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
