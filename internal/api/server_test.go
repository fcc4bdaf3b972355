package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/research-lab/internal/analysis"
	"github.com/yourusername/research-lab/internal/hypothesis"
	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/platform"
	"github.com/yourusername/research-lab/internal/repository"
	"github.com/yourusername/research-lab/internal/service"
)

type testEnv struct {
	client *Client
	orch   *service.ExperimentOrchestrator
	url    string
}

// newTestEnv serves the API over an orchestrator whose platform jobs finish
// after polls status checks.
func newTestEnv(t *testing.T, polls, maxConcurrent int) *testEnv {
	t.Helper()

	log, _ := test.NewNullLogger()
	reg := metrics.NewRegistry()
	scorer, err := analysis.NewFitnessScorer(analysis.DefaultFitnessConfig())
	require.NoError(t, err)
	analyzer := analysis.NewAnalyzer(analysis.NewMetricsCalculator(0.02), scorer)

	repos := repository.NewMemoryRepositories()
	executor := service.NewPlatformExecutor(platform.NewSimulator(polls), service.PlatformExecutorConfig{
		PollInterval:      time.Millisecond,
		MaxStatusFailures: 3,
	}, log)
	knowledge := service.NewKnowledgeService(repos.Knowledge, nil, log, reg)
	orch := service.NewExperimentOrchestrator(repos.Experiment, executor, analyzer, knowledge, nil,
		service.OrchestratorConfig{MaxConcurrentExperiments: maxConcurrent, DefaultTimeoutHours: 1}, log, reg)
	require.NoError(t, orch.Initialize(context.Background()))
	research := service.NewResearchService(orch, hypothesis.NewTemplateGenerator(), knowledge,
		service.ResearchConfig{MaxHypotheses: 2}, log, reg)

	srv := NewServer(Dependencies{
		Experiments: orch,
		Research:    research,
		Analyzer:    analyzer,
		Metrics:     reg,
		Logger:      log,
	}, ServerConfig{CancelWait: 5 * time.Second})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	return &testEnv{client: NewClient(ts.URL, 5*time.Second), orch: orch, url: ts.URL}
}

func (env *testEnv) waitForStatus(t *testing.T, id uuid.UUID, status models.ExperimentStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		report, err := env.client.GetExperiment(context.Background(), id)
		return err == nil && report.Experiment.Status == status && !report.IsRunning
	}, 5*time.Second, 10*time.Millisecond)
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	return apiErr.StatusCode
}

func TestCreateAndRunExperiment(t *testing.T) {
	env := newTestEnv(t, 1, 2)
	ctx := context.Background()

	exp, err := env.client.CreateExperiment(ctx, CreateExperimentRequest{
		Name:       "breakout",
		Hypothesis: "breakouts persist",
		Type:       string(models.ExperimentTypePatternDiscovery),
		Parameters: map[string]interface{}{"lookback": 20},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentStatusPending, exp.Status)

	started, err := env.client.StartExperiment(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentStatusInitializing, started.Status)

	env.waitForStatus(t, exp.ID, models.ExperimentStatusCompleted)

	result, err := env.client.AnalyzeExperiment(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, result.ExperimentID)
	assert.NotEmpty(t, result.Insights)

	stats, err := env.client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CompletedExperiments)

	list, err := env.client.ListExperiments(ctx, []models.ExperimentStatus{models.ExperimentStatusCompleted}, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, exp.ID, list[0].ID)
}

func TestCreateExperimentValidation(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	_, err := env.client.CreateExperiment(context.Background(), CreateExperimentRequest{Type: "astrology", TimeoutHours: -1})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	fields := map[string]bool{}
	for _, e := range apiErr.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["experiment_type"])
	assert.True(t, fields["timeout_hours"])
}

func TestErrorStatusMapping(t *testing.T) {
	env := newTestEnv(t, 1<<30, 1)
	ctx := context.Background()

	_, err := env.client.GetExperiment(ctx, uuid.New())
	assert.Equal(t, http.StatusNotFound, apiStatus(t, err))

	resp, err := http.Get(env.url + "/api/v1/experiments/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	first, err := env.client.CreateExperiment(ctx, CreateExperimentRequest{Name: "a", Type: string(models.ExperimentTypeRegimeDetection), Start: true})
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentStatusInitializing, first.Status)

	_, err = env.client.StartExperiment(ctx, first.ID)
	assert.Equal(t, http.StatusConflict, apiStatus(t, err))

	second, err := env.client.CreateExperiment(ctx, CreateExperimentRequest{Name: "b", Type: string(models.ExperimentTypeRegimeDetection)})
	require.NoError(t, err)
	_, err = env.client.StartExperiment(ctx, second.ID)
	assert.Equal(t, http.StatusTooManyRequests, apiStatus(t, err))

	_, err = env.client.CancelExperiment(ctx, second.ID, "")
	assert.Equal(t, http.StatusConflict, apiStatus(t, err))
}

func TestCancelExperimentEndpoint(t *testing.T) {
	env := newTestEnv(t, 1<<30, 1)
	ctx := context.Background()

	exp, err := env.client.CreateExperiment(ctx, CreateExperimentRequest{Name: "long", Type: string(models.ExperimentTypeCrossValidation), Start: true})
	require.NoError(t, err)

	report, err := env.client.CancelExperiment(ctx, exp.ID, "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentStatusCancelled, report.Experiment.Status)
	require.NotNil(t, report.Experiment.ErrorInfo)
	assert.Equal(t, "no longer needed", report.Experiment.ErrorInfo.Message)
	assert.False(t, report.IsRunning)
	assert.Equal(t, int64(1), report.Stats.CancelledExperiments)
}

func TestCompareEndpoint(t *testing.T) {
	env := newTestEnv(t, 1, 3)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, params := range []map[string]interface{}{
		{"lookback": 10},
		{"lookback": 30},
		{platform.FailParameter: true},
	} {
		exp, err := env.client.CreateExperiment(ctx, CreateExperimentRequest{
			Name: "candidate", Type: string(models.ExperimentTypeIndicatorOptimization), Parameters: params, Start: true,
		})
		require.NoError(t, err)
		ids = append(ids, exp.ID)
	}
	env.waitForStatus(t, ids[0], models.ExperimentStatusCompleted)
	env.waitForStatus(t, ids[1], models.ExperimentStatusCompleted)
	env.waitForStatus(t, ids[2], models.ExperimentStatusFailed)

	report, err := env.client.Compare(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count)
	require.Len(t, report.Ranking, 3)
	assert.Equal(t, ids[2], report.Ranking[2].ExperimentID)
	assert.Equal(t, 0.0, report.Ranking[2].FitnessScore)

	_, err = env.client.Compare(ctx, nil)
	assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))
}

func TestResearchCycleEndpoint(t *testing.T) {
	env := newTestEnv(t, 1<<30, 1)

	report, err := env.client.RunResearchCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Hypotheses)
	assert.Len(t, report.Created, 2)
	assert.Len(t, report.Started, 1)
	assert.Len(t, report.Deferred, 1)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	resp, err := http.Get(env.url + "/api/v1/experiments?status=sleeping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Post(env.url+"/api/v1/experiments", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
