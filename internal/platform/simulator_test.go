package platform

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runToCompletion(t *testing.T, sim *Simulator, req JobRequest) (JobStatus, string) {
	t.Helper()
	ctx := context.Background()
	job, err := sim.SubmitJob(ctx, req)
	require.NoError(t, err)

	var status JobStatus
	for i := 0; i < 10; i++ {
		status = sim.JobStatus(ctx, job.ID)
		if status.State.IsTerminal() {
			break
		}
	}
	return status, job.ID
}

func TestSimulatorCompletesAfterConfiguredPolls(t *testing.T) {
	sim := NewSimulator(3)
	ctx := context.Background()

	job, err := sim.SubmitJob(ctx, JobRequest{Kind: JobKindTraining, ExperimentID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 1, sim.ActiveJobs())

	assert.Equal(t, JobStateRunning, sim.JobStatus(ctx, job.ID).State)
	assert.Equal(t, JobStateRunning, sim.JobStatus(ctx, job.ID).State)
	assert.Equal(t, JobStateCompleted, sim.JobStatus(ctx, job.ID).State)
	assert.Equal(t, JobStateCompleted, sim.JobStatus(ctx, job.ID).State)
	assert.Equal(t, 0, sim.ActiveJobs())

	results, err := sim.JobResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Contains(t, results, "model_id")
	assert.Contains(t, results, "in_sample_return")
}

func TestSimulatorIsDeterministic(t *testing.T) {
	req := JobRequest{
		Kind:           JobKindBacktest,
		ExperimentID:   uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		ExperimentType: "pattern-discovery",
		Parameters:     map[string]interface{}{"lookback": 20},
		ModelID:        "model-1",
	}

	sim := NewSimulator(1)
	status, id := runToCompletion(t, sim, req)
	require.Equal(t, JobStateCompleted, status.State)
	a, err := sim.JobResults(context.Background(), id)
	require.NoError(t, err)

	other := NewSimulator(1)
	_, otherID := runToCompletion(t, other, req)
	b, err := other.JobResults(context.Background(), otherID)
	require.NoError(t, err)

	assert.Equal(t, a["daily_returns"], b["daily_returns"])
	assert.Equal(t, a["final_capital"], b["final_capital"])
	assert.NotEqual(t, id, otherID)
}

func TestSimulatorFailureParameter(t *testing.T) {
	status, id := runToCompletion(t, NewSimulator(2), JobRequest{
		Kind:       JobKindTraining,
		Parameters: map[string]interface{}{FailParameter: true},
	})
	assert.Equal(t, JobStateFailed, status.State)
	assert.NotEmpty(t, status.Message)
	assert.NotEmpty(t, id)
}

func TestSimulatorRejectsBacktestWithoutModel(t *testing.T) {
	_, err := NewSimulator(1).SubmitJob(context.Background(), JobRequest{Kind: JobKindBacktest})
	require.Error(t, err)
	assert.Equal(t, "parameter", string(CauseOf(err)))
}

func TestSimulatorStopAndUnknownJobs(t *testing.T) {
	sim := NewSimulator(5)
	ctx := context.Background()

	job, err := sim.SubmitJob(ctx, JobRequest{Kind: JobKindTraining})
	require.NoError(t, err)
	require.NoError(t, sim.StopJob(ctx, job.ID))
	assert.Equal(t, JobStateFailed, sim.JobStatus(ctx, job.ID).State)

	status := sim.JobStatus(ctx, "nope")
	assert.Equal(t, JobStateUnknown, status.State)
	assert.ErrorIs(t, status.Err, ErrJobNotFound)
	assert.ErrorIs(t, sim.StopJob(ctx, "nope"), ErrJobNotFound)

	_, err = sim.JobResults(ctx, job.ID)
	assert.Error(t, err)
}
