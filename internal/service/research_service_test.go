package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/research-lab/internal/hypothesis"
	"github.com/yourusername/research-lab/internal/models"
)

func newTestResearchService(h *harness, cfg ResearchConfig) *ResearchService {
	ks := NewKnowledgeService(h.knowledge, h.publisher, h.logger, nil)
	return NewResearchService(h.orch, hypothesis.NewTemplateGenerator(), ks, cfg, h.logger, nil)
}

func blockingExecutor() *MockExecutor {
	executor := &MockExecutor{}
	executor.On("RunTraining", mock.Anything, mock.Anything).Run(blockUntilCancelled).Return(nil, context.Canceled)
	return executor
}

func TestResearchCycleDefersBeyondCeiling(t *testing.T) {
	h := newHarness(t, blockingExecutor(), 2).init(t)
	svc := newTestResearchService(h, ResearchConfig{MaxHypotheses: 5, MinConfidence: 0.55, DefaultPriority: 1})

	report, err := svc.RunResearchCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Hypotheses)
	assert.Equal(t, 1, report.Filtered)
	assert.Len(t, report.Created, 4)
	assert.Len(t, report.Started, 2)
	assert.Len(t, report.Deferred, 2)

	first, err := h.repo.GetByID(context.Background(), report.Created[0])
	require.NoError(t, err)
	assert.Equal(t, "walk-forward-check", first.Name)
	assert.Equal(t, 8, first.Priority)
	require.NotNil(t, first.SessionID)
	assert.Equal(t, report.SessionID, *first.SessionID)

	for _, id := range report.Deferred {
		exp, err := h.repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.ExperimentStatusPending, exp.Status)
	}

	assert.GreaterOrEqual(t, report.DurationSeconds, 0.0)
	assert.Less(t, report.DurationSeconds, 60.0, "duration is reported in seconds")
	encoded, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"duration_seconds":`)
}

func TestStartPendingByPriority(t *testing.T) {
	h := newHarness(t, blockingExecutor(), 1).init(t)
	svc := newTestResearchService(h, ResearchConfig{})
	ctx := context.Background()

	low, err := h.orch.CreateExperiment(ctx, CreateRequest{Name: "low", Type: models.ExperimentTypePatternDiscovery, Priority: 1})
	require.NoError(t, err)
	high, err := h.orch.CreateExperiment(ctx, CreateRequest{Name: "high", Type: models.ExperimentTypePatternDiscovery, Priority: 9})
	require.NoError(t, err)

	started, err := svc.StartPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{high.ID}, started)
	assert.True(t, h.orch.IsRunning(high.ID))
	assert.False(t, h.orch.IsRunning(low.ID))

	started, err = svc.StartPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, started)
}

func TestRefineTopExperiments(t *testing.T) {
	h := newHarness(t, &MockExecutor{}, 1)
	ctx := context.Background()
	now := time.Now().UTC()

	seedCompleted := func(name string, fitness float64) *models.Experiment {
		exp := &models.Experiment{
			ID:           uuid.New(),
			Name:         name,
			Type:         models.ExperimentTypePatternDiscovery,
			Parameters:   map[string]interface{}{"lookback": 20, "threshold": 0.02, "label": "x"},
			Priority:     3,
			TimeoutHours: 2,
			Status:       models.ExperimentStatusCompleted,
			Results:      &models.ExperimentResults{FitnessScore: fitness},
			CreatedAt:    now,
			UpdatedAt:    now,
			CompletedAt:  &now,
		}
		require.NoError(t, h.repo.Create(ctx, exp))
		return exp
	}
	best := seedCompleted("best", 3.2)
	seedCompleted("worst", 0.4)
	second := seedCompleted("second", 2.0)

	h.init(t)
	svc := newTestResearchService(h, ResearchConfig{RefineTopN: 2})

	children, err := svc.RefineTopExperiments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, children, 2)

	assert.Equal(t, best.ID, *children[0].ParentID)
	assert.Equal(t, second.ID, *children[1].ParentID)
	assert.Equal(t, models.ExperimentTypeIndicatorOptimization, children[0].Type)
	assert.Equal(t, models.ExperimentStatusPending, children[0].Status)
	assert.Equal(t, 4, children[0].Priority)
	assert.Equal(t, 2.0, children[0].TimeoutHours)

	lookback, ok := children[0].Parameters["lookback"].(int)
	require.True(t, ok)
	assert.InDelta(t, 20, lookback, 2)
	assert.InDelta(t, 0.02, children[0].Parameters["threshold"], 0.002)
	assert.Equal(t, "x", children[0].Parameters["label"])
}

func TestRefineTopExperimentsSkipsRefinedParents(t *testing.T) {
	h := newHarness(t, &MockExecutor{}, 1)
	ctx := context.Background()
	now := time.Now().UTC()

	var parents []uuid.UUID
	for i, fitness := range []float64{3.2, 2.0, 0.4} {
		exp := &models.Experiment{
			ID:           uuid.New(),
			Name:         fmt.Sprintf("parent-%d", i),
			Type:         models.ExperimentTypePatternDiscovery,
			Parameters:   map[string]interface{}{"lookback": 20},
			TimeoutHours: 1,
			Status:       models.ExperimentStatusCompleted,
			Results:      &models.ExperimentResults{FitnessScore: fitness},
			CreatedAt:    now,
			UpdatedAt:    now,
			CompletedAt:  &now,
		}
		require.NoError(t, h.repo.Create(ctx, exp))
		parents = append(parents, exp.ID)
	}

	h.init(t)
	svc := newTestResearchService(h, ResearchConfig{})

	first, err := svc.RefineTopExperiments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := svc.RefineTopExperiments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second, 1, "only the unrefined parent is left")
	assert.Equal(t, parents[2], *second[0].ParentID)

	third, err := svc.RefineTopExperiments(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, third)

	for _, id := range parents {
		id := id
		kids, err := h.repo.List(ctx, models.ExperimentFilter{ParentID: &id})
		require.NoError(t, err)
		assert.Len(t, kids, 1, "parent %s refined more than once", id)
	}
}

func TestPerturbParametersIsDeterministic(t *testing.T) {
	id := uuid.New()
	params := map[string]interface{}{"a": 10, "b": 1.5, "c": 100.0}

	first := perturbParameters(id, params)
	assert.Equal(t, first, perturbParameters(id, params))
	assert.IsType(t, 0, first["a"])
	assert.IsType(t, 0.0, first["c"])
	assert.Equal(t, 10, params["a"])
}
