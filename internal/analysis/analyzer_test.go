package analysis

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/research-lab/internal/models"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return NewAnalyzer(NewMetricsCalculator(0.02), newTestScorer(t))
}

func TestAnalyzeNonCompletedExperiments(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	cases := []struct {
		status models.ExperimentStatus
		info   *models.ErrorInfo
	}{
		{models.ExperimentStatusFailed, &models.ErrorInfo{Kind: models.ErrorKindExecution, Message: "boom"}},
		{models.ExperimentStatusFailed, nil},
		{models.ExperimentStatusCancelled, &models.ErrorInfo{Kind: models.ErrorKindCancelled, Message: "cancelled by user"}},
		{models.ExperimentStatusPending, nil},
		{models.ExperimentStatusRunning, nil},
		{models.ExperimentStatusAnalyzing, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			result, err := analyzer.Analyze(context.Background(), Outcome{
				ExperimentID: uuid.New(),
				Status:       tc.status,
				Error:        tc.info,
				BacktestResults: map[string]interface{}{
					"sharpe_ratio": 3.0,
					"total_return": 0.5,
				},
			})
			require.NoError(t, err)
			assert.Equal(t, 0.0, result.FitnessScore)
			assert.Equal(t, RiskProfileUnknown, result.RiskProfile)
			assert.NotEmpty(t, result.Insights)
			assert.NotEmpty(t, result.Recommendations)
		})
	}
}

func TestFailureRecommendations(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	cases := []struct {
		name string
		info *models.ErrorInfo
		want string
	}{
		{"structured timeout", &models.ErrorInfo{Kind: models.ErrorKindExecution, Cause: models.ErrorCauseTimeout, Message: "job stopped"}, "Increase the experiment timeout"},
		{"message timeout", &models.ErrorInfo{Kind: models.ErrorKindExecution, Message: "training job timed out after 2h"}, "Increase the experiment timeout"},
		{"message connection", &models.ErrorInfo{Kind: models.ErrorKindExecution, Message: "dial tcp: connection refused"}, "Check connectivity to the training platform"},
		{"message parameter", &models.ErrorInfo{Kind: models.ErrorKindExecution, Message: "invalid parameter lookback"}, "Validate hypothesis-generated parameters before submission"},
		{"cause beats message", &models.ErrorInfo{Kind: models.ErrorKindExecution, Cause: models.ErrorCauseNetwork, Message: "request timeout"}, "Check connectivity to the training platform"},
		{"unclassified", &models.ErrorInfo{Kind: models.ErrorKindExecution, Message: "segfault"}, "Inspect the experiment logs for the root cause before re-running"},
		{"interruption", &models.ErrorInfo{Kind: models.ErrorKindSystemInterruption, Message: "system interruption"}, "Restart the experiment; it was interrupted by a process restart"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := analyzer.Analyze(context.Background(), Outcome{
				ExperimentID: uuid.New(),
				Status:       models.ExperimentStatusFailed,
				Error:        tc.info,
			})
			require.NoError(t, err)
			assert.Contains(t, result.Recommendations, tc.want)
			assert.Contains(t, result.Insights[0], "failed")
		})
	}
}

func TestAnalyzeCompletedExperiment(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	id := uuid.New()

	result, err := analyzer.Analyze(context.Background(), Outcome{
		ExperimentID:    id,
		Status:          models.ExperimentStatusCompleted,
		TrainingResults: map[string]interface{}{"model_id": "m-1"},
		BacktestResults: map[string]interface{}{
			"total_return":      0.35,
			"sharpe_ratio":      2.5,
			"sortino_ratio":     3.0,
			"max_drawdown":      -0.03,
			"volatility":        0.08,
			"profit_factor":     2.5,
			"total_trades":      200,
			"profitable_trades": 140,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, id, result.ExperimentID)
	assert.Greater(t, result.FitnessScore, 1.5)
	assert.Equal(t, RiskProfileConservative, result.RiskProfile)
	assert.Contains(t, result.Insights[0], "Excellent risk-adjusted returns")
	assert.Empty(t, result.Warnings)
	assert.NotEmpty(t, result.Recommendations)
	assert.False(t, result.AnalyzedAt.IsZero())
}

func TestAnalyzeMetricsWeakStrategyWarnings(t *testing.T) {
	result := newTestAnalyzer(t).AnalyzeMetrics(uuid.New(), weakMetrics())

	assert.Less(t, result.FitnessScore, 0.5)
	assert.Equal(t, RiskProfileSpeculative, result.RiskProfile)
	assert.GreaterOrEqual(t, len(result.Warnings), 3)
	assert.Len(t, result.Recommendations, len(result.Warnings))
}

func TestAnalyzeRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAnalyzer(t).Analyze(ctx, Outcome{Status: models.ExperimentStatusCompleted})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToResultsCarriesAnalysis(t *testing.T) {
	result := newTestAnalyzer(t).AnalyzeMetrics(uuid.New(), strongMetrics())
	training := map[string]interface{}{"model_id": "m-1"}

	res := result.ToResults(training, nil)
	assert.Equal(t, result.FitnessScore, res.FitnessScore)
	assert.Equal(t, string(result.RiskProfile), res.RiskProfile)
	assert.Equal(t, 2.5, res.PerformanceMetrics["sharpe_ratio"])
	assert.Equal(t, training, res.TrainingResults)
	assert.Equal(t, result.Insights, res.Insights)
}

func TestFromExperiment(t *testing.T) {
	exp := &models.Experiment{
		ID:     uuid.New(),
		Status: models.ExperimentStatusCompleted,
		Results: &models.ExperimentResults{
			BacktestResults: map[string]interface{}{"sharpe_ratio": 1.2},
		},
	}
	outcome := FromExperiment(exp)
	assert.Equal(t, exp.ID, outcome.ExperimentID)
	assert.Equal(t, 1.2, outcome.BacktestResults["sharpe_ratio"])
	assert.Nil(t, outcome.Error)
}
