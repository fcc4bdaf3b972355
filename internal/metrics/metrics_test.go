package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryIsIsolated(t *testing.T) {
	first := NewRegistry()
	second := NewRegistry()

	first.RecordExperimentCreated()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.ExperimentsCreatedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.ExperimentsCreatedTotal))
}

func TestRecordExperimentFinished(t *testing.T) {
	r := NewRegistry()

	r.RecordExperimentFinished("failed", "pattern-discovery", 3*time.Second)
	r.RecordExperimentFinished("failed", "pattern-discovery", time.Second)
	r.RecordExperimentFinished("completed", "regime-detection", time.Minute)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ExperimentsFinishedTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ExperimentsFinishedTotal.WithLabelValues("completed")))
}

func TestGaugesAndCounters(t *testing.T) {
	r := NewRegistry()

	r.SetExperimentsRunning(3)
	r.RecordAdmissionRejected()
	r.RecordPlatformRequest("submit", "success")
	r.RecordHypothesesGenerated(4)
	r.RecordHypothesisCache(true)
	r.RecordHypothesisCache(false)
	r.RecordResearchCycle("success")
	r.RecordKnowledgeEntries("insight", 2)
	r.RecordEventPublishFailure("kafka")
	r.RecordFitnessScore(1.7)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.ExperimentsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.AdmissionRejectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PlatformRequestsTotal.WithLabelValues("submit", "success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.HypothesesGeneratedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HypothesisCacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HypothesisCacheMissTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ResearchCyclesTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.KnowledgeEntriesTotal.WithLabelValues("insight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.EventPublishFailuresTotal.WithLabelValues("kafka")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordExperimentCreated()
		r.RecordExperimentFinished("completed", "x", time.Second)
		r.SetExperimentsRunning(1)
		r.RecordAdmissionRejected()
		r.RecordFitnessScore(1)
		r.RecordPlatformRequest("status", "unknown")
		r.RecordHypothesesGenerated(1)
		r.RecordHypothesisCache(true)
		r.RecordResearchCycle("failure")
		r.RecordKnowledgeEntries("warning", 1)
		r.RecordEventPublishFailure("websocket")
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordExperimentCreated()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "research_lab_experiments_created_total 1")
}
