// Package metrics provides the Prometheus metrics registry for the research lab.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "research_lab"

// Registry owns every research lab collector. A nil *Registry is valid and
// records nothing, so components can run without metrics.
type Registry struct {
	registry *prometheus.Registry

	ExperimentsCreatedTotal   prometheus.Counter
	ExperimentsFinishedTotal  *prometheus.CounterVec
	ExperimentsRunning        prometheus.Gauge
	AdmissionRejectionsTotal  prometheus.Counter
	ExperimentDuration        *prometheus.HistogramVec
	ExperimentFitnessScore    prometheus.Histogram
	PlatformRequestsTotal     *prometheus.CounterVec
	HypothesesGeneratedTotal  prometheus.Counter
	ResearchCyclesTotal       *prometheus.CounterVec
	HypothesisCacheHitsTotal  prometheus.Counter
	HypothesisCacheMissTotal  prometheus.Counter
	KnowledgeEntriesTotal     *prometheus.CounterVec
	EventPublishFailuresTotal *prometheus.CounterVec
	HTTPRequestsTotal         *prometheus.CounterVec
	HTTPRequestDuration       *prometheus.HistogramVec
}

// NewRegistry creates and registers all collectors on a private registry.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		// Counter metrics
		ExperimentsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experiments_created_total",
			Help:      "Total number of experiments created",
		}),
		ExperimentsFinishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experiments_finished_total",
			Help:      "Total number of experiments reaching a terminal status",
		}, []string{"status"}),
		AdmissionRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experiment_admission_rejections_total",
			Help:      "Total number of starts rejected by the concurrency ceiling",
		}),
		PlatformRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_requests_total",
			Help:      "Total number of training platform requests",
		}, []string{"op", "outcome"}),
		HypothesesGeneratedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hypotheses_generated_total",
			Help:      "Total number of hypotheses returned by the generator",
		}),
		ResearchCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_cycles_total",
			Help:      "Total number of research cycles",
		}, []string{"outcome"}),
		HypothesisCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hypothesis_cache_hits_total",
			Help:      "Total number of hypothesis requests served from cache",
		}),
		HypothesisCacheMissTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hypothesis_cache_misses_total",
			Help:      "Total number of hypothesis requests sent to the generator",
		}),
		KnowledgeEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_entries_total",
			Help:      "Total number of knowledge entries recorded",
		}, []string{"type"}),
		EventPublishFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Total number of lifecycle events that could not be published",
		}, []string{"sink"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "route", "status"}),

		// Gauge metrics
		ExperimentsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "experiments_running",
			Help:      "Number of experiments currently executing",
		}),

		// Histogram metrics
		ExperimentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "experiment_duration_seconds",
			Help:      "Wall-clock duration of finished experiments",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"type"}),
		ExperimentFitnessScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "experiment_fitness_score",
			Help:      "Fitness scores of completed experiments",
			Buckets:   []float64{0.25, 0.5, 1, 1.5, 2, 2.5, 3, 4, 5},
		}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	r.registry.MustRegister(
		r.ExperimentsCreatedTotal,
		r.ExperimentsFinishedTotal,
		r.ExperimentsRunning,
		r.AdmissionRejectionsTotal,
		r.ExperimentDuration,
		r.ExperimentFitnessScore,
		r.PlatformRequestsTotal,
		r.HypothesesGeneratedTotal,
		r.ResearchCyclesTotal,
		r.HypothesisCacheHitsTotal,
		r.HypothesisCacheMissTotal,
		r.KnowledgeEntriesTotal,
		r.EventPublishFailuresTotal,
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the Prometheus HTTP handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordExperimentCreated records an experiment creation.
func (r *Registry) RecordExperimentCreated() {
	if r == nil {
		return
	}
	r.ExperimentsCreatedTotal.Inc()
}

// RecordExperimentFinished records a terminal status and the run duration.
func (r *Registry) RecordExperimentFinished(status, experimentType string, duration time.Duration) {
	if r == nil {
		return
	}
	r.ExperimentsFinishedTotal.WithLabelValues(status).Inc()
	r.ExperimentDuration.WithLabelValues(experimentType).Observe(duration.Seconds())
}

// SetExperimentsRunning updates the running gauge.
func (r *Registry) SetExperimentsRunning(n int) {
	if r == nil {
		return
	}
	r.ExperimentsRunning.Set(float64(n))
}

// RecordAdmissionRejected records a start refused at the ceiling.
func (r *Registry) RecordAdmissionRejected() {
	if r == nil {
		return
	}
	r.AdmissionRejectionsTotal.Inc()
}

// RecordFitnessScore records a completed experiment's fitness.
func (r *Registry) RecordFitnessScore(score float64) {
	if r == nil {
		return
	}
	r.ExperimentFitnessScore.Observe(score)
}

// RecordPlatformRequest records one platform call.
func (r *Registry) RecordPlatformRequest(op, outcome string) {
	if r == nil {
		return
	}
	r.PlatformRequestsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordHypothesesGenerated adds n generated hypotheses.
func (r *Registry) RecordHypothesesGenerated(n int) {
	if r == nil {
		return
	}
	r.HypothesesGeneratedTotal.Add(float64(n))
}

// RecordHypothesisCache records a cache lookup.
func (r *Registry) RecordHypothesisCache(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.HypothesisCacheHitsTotal.Inc()
		return
	}
	r.HypothesisCacheMissTotal.Inc()
}

// RecordResearchCycle records a research cycle outcome.
func (r *Registry) RecordResearchCycle(outcome string) {
	if r == nil {
		return
	}
	r.ResearchCyclesTotal.WithLabelValues(outcome).Inc()
}

// RecordKnowledgeEntries adds n entries of one type.
func (r *Registry) RecordKnowledgeEntries(entryType string, n int) {
	if r == nil {
		return
	}
	r.KnowledgeEntriesTotal.WithLabelValues(entryType).Add(float64(n))
}

// RecordEventPublishFailure records an event that a sink dropped.
func (r *Registry) RecordEventPublishFailure(sink string) {
	if r == nil {
		return
	}
	r.EventPublishFailuresTotal.WithLabelValues(sink).Inc()
}

// RecordHTTPRequest counts one API request
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
