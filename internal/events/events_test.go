package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) Name() string { return "recording" }

func sampleEvent() Event {
	return Event{
		Type:         TypeExperimentTransition,
		ExperimentID: uuid.New(),
		From:         models.ExperimentStatusRunning,
		To:           models.ExperimentStatusAnalyzing,
		Timestamp:    time.Now().UTC(),
	}
}

func TestMultiPublisherDeliversDespiteFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	reg := metrics.NewRegistry()
	failing := &recordingSink{err: errors.New("broker down")}
	healthy := &recordingSink{}

	pub := NewMultiPublisher(logger, reg, failing, healthy)
	err := pub.Publish(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
	assert.Len(t, hook.Entries, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.EventPublishFailuresTotal.WithLabelValues("recording")))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), sampleEvent()))
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherKeysByExperiment(t *testing.T) {
	writer := &fakeWriter{}
	pub := &KafkaPublisher{writer: writer, topic: "experiments"}
	event := sampleEvent()

	require.NoError(t, pub.Publish(context.Background(), event))
	require.Len(t, writer.msgs, 1)
	assert.Equal(t, event.ExperimentID.String(), string(writer.msgs[0].Key))
	assert.Equal(t, "event_type", writer.msgs[0].Headers[0].Key)

	var decoded Event
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &decoded))
	assert.Equal(t, models.ExperimentStatusAnalyzing, decoded.To)

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewKafkaPublisher(nil, "t", logger)
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "", logger)
	assert.Error(t, err)

	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, "experiments", logger)
	require.NoError(t, err)
	assert.Equal(t, "kafka", pub.Name())
	require.NoError(t, pub.Close())
}

func TestNewKafkaPublisherWritesAsynchronously(t *testing.T) {
	logger, hook := test.NewNullLogger()
	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, "experiments", logger)
	require.NoError(t, err)
	defer pub.Close()

	writer, ok := pub.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, writer.Async, "publishing must not block on broker acks")
	require.NotNil(t, writer.Completion)

	writer.Completion([]kafka.Message{{}, {}}, nil)
	assert.Empty(t, hook.AllEntries())

	writer.Completion([]kafka.Message{{}, {}}, errors.New("broker unavailable"))
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 2, entry.Data["messages"])
	assert.Equal(t, "experiments", entry.Data["topic"])
}

func TestHubBroadcastsToWebsocketClients(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	event := sampleEvent()
	require.NoError(t, hub.Publish(context.Background(), event))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, event.ExperimentID, got.ExperimentID)
	assert.Equal(t, TypeExperimentTransition, got.Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
