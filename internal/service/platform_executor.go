package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/logger"
	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/platform"
)

const stopJobTimeout = 10 * time.Second

// PlatformExecutorConfig tunes job polling
type PlatformExecutorConfig struct {
	PollInterval      time.Duration
	MaxStatusFailures int
}

// PlatformExecutor runs experiment phases as remote platform jobs
type PlatformExecutor struct {
	client    platform.Client
	cfg       PlatformExecutorConfig
	logger    *logrus.Logger
	jobLogger *logger.ResearchLogger
	now       func() time.Time
}

// NewPlatformExecutor creates an executor backed by client
func NewPlatformExecutor(client platform.Client, cfg PlatformExecutorConfig, log *logrus.Logger) *PlatformExecutor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxStatusFailures < 1 {
		cfg.MaxStatusFailures = 5
	}
	return &PlatformExecutor{
		client:    client,
		cfg:       cfg,
		logger:    log,
		jobLogger: logger.NewResearchLogger(log),
		now:       time.Now,
	}
}

// RunTraining submits a training job and waits for its results
func (e *PlatformExecutor) RunTraining(ctx context.Context, exp *models.Experiment) (map[string]interface{}, error) {
	return e.run(ctx, exp, platform.JobRequest{
		Kind:           platform.JobKindTraining,
		ExperimentID:   exp.ID,
		ExperimentType: string(exp.Type),
		Parameters:     exp.Parameters,
	})
}

// RunBacktest submits a backtest of the model produced by training
func (e *PlatformExecutor) RunBacktest(ctx context.Context, exp *models.Experiment, training map[string]interface{}) (map[string]interface{}, error) {
	modelID, _ := training["model_id"].(string)
	if modelID == "" {
		return nil, platform.NewError("backtest", models.ErrorCauseParameter,
			errors.New("training results carry no model_id"))
	}
	return e.run(ctx, exp, platform.JobRequest{
		Kind:           platform.JobKindBacktest,
		ExperimentID:   exp.ID,
		ExperimentType: string(exp.Type),
		Parameters:     exp.Parameters,
		ModelID:        modelID,
	})
}

// run submits req and polls at a fixed interval until the job ends, the
// experiment's timeout elapses, or ctx is cancelled.
func (e *PlatformExecutor) run(ctx context.Context, exp *models.Experiment, req platform.JobRequest) (map[string]interface{}, error) {
	job, err := e.client.SubmitJob(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit %s job: %w", req.Kind, err)
	}
	e.jobLogger.LogPlatformJob(exp.ID.String(), job.ID, string(req.Kind), "submitted", 0)

	started := e.now()
	if exp.StartedAt != nil {
		started = *exp.StartedAt
	}
	deadline := started.Add(exp.Timeout())

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	unknown := 0
	for {
		select {
		case <-ctx.Done():
			e.stop(job.ID)
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if e.now().After(deadline) {
			e.stop(job.ID)
			return nil, platform.NewError(string(req.Kind), models.ErrorCauseTimeout,
				fmt.Errorf("%s job %s timed out after %.2f hours", req.Kind, job.ID, exp.TimeoutHours))
		}

		status := e.client.JobStatus(ctx, job.ID)
		switch status.State {
		case platform.JobStateUnknown:
			unknown++
			e.logger.WithError(status.Err).WithFields(logrus.Fields{
				"job_id":   job.ID,
				"failures": unknown,
			}).Warn("Could not determine job status")
			if unknown > e.cfg.MaxStatusFailures {
				return nil, platform.NewError(string(req.Kind), models.ErrorCauseNetwork,
					fmt.Errorf("status of %s job %s unknown after %d polls: %w", req.Kind, job.ID, unknown, status.Err))
			}
			continue
		case platform.JobStateFailed:
			e.jobLogger.LogPlatformJob(exp.ID.String(), job.ID, string(req.Kind), string(status.State), status.Progress)
			return nil, platform.NewError(string(req.Kind), models.ErrorCauseRemote,
				fmt.Errorf("%w: %s", platform.ErrJobFailed, status.Message))
		case platform.JobStateCompleted:
			e.jobLogger.LogPlatformJob(exp.ID.String(), job.ID, string(req.Kind), string(status.State), status.Progress)
			results, err := e.client.JobResults(ctx, job.ID)
			if err != nil {
				return nil, fmt.Errorf("fetch %s results: %w", req.Kind, err)
			}
			return results, nil
		default:
			unknown = 0
			e.jobLogger.LogPlatformJob(exp.ID.String(), job.ID, string(req.Kind), string(status.State), status.Progress)
		}
	}
}

// stop asks the platform to abandon a job. It outlives the caller's context.
func (e *PlatformExecutor) stop(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), stopJobTimeout)
	defer cancel()
	if err := e.client.StopJob(ctx, jobID); err != nil {
		e.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to stop platform job")
	}
}
