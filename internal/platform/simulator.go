package platform

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/research-lab/internal/models"
)

// FailParameter makes the simulator fail a job when set to true in the
// experiment parameters.
const FailParameter = "simulate_failure"

const (
	simulatedDays    = 252
	simulatedCapital = 100000
)

type simulatedJob struct {
	req    JobRequest
	polls  int
	state  JobState
	result map[string]interface{}
}

// Simulator is an in-process platform with deterministic, seed-derived results.
// Each job completes after a fixed number of status polls.
type Simulator struct {
	mu         sync.Mutex
	jobs       map[string]*simulatedJob
	pollsToRun int
	now        func() time.Time
}

// NewSimulator creates a simulator whose jobs complete after polls status calls
func NewSimulator(polls int) *Simulator {
	if polls < 1 {
		polls = 1
	}
	return &Simulator{
		jobs:       make(map[string]*simulatedJob),
		pollsToRun: polls,
		now:        time.Now,
	}
}

// SubmitJob registers a job
func (s *Simulator) SubmitJob(ctx context.Context, req JobRequest) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("submit", models.ErrorCauseTimeout, err)
	}
	if req.Kind == JobKindBacktest && req.ModelID == "" {
		return nil, NewError("submit", models.ErrorCauseParameter, fmt.Errorf("backtest job requires a model id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("sim-%s-%s", req.Kind, uuid.NewString())
	s.jobs[id] = &simulatedJob{req: req, state: JobStateQueued}
	return &Job{ID: id, Kind: req.Kind, SubmittedAt: s.now()}, nil
}

// JobStatus advances the job by one poll
func (s *Simulator) JobStatus(ctx context.Context, jobID string) JobStatus {
	if err := ctx.Err(); err != nil {
		return JobStatus{State: JobStateUnknown, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return JobStatus{State: JobStateUnknown, Err: NewError("status", models.ErrorCauseUnknown, ErrJobNotFound)}
	}
	if job.state.IsTerminal() {
		return JobStatus{State: job.state, Progress: 1}
	}

	job.polls++
	switch {
	case job.polls >= s.pollsToRun && shouldFail(job.req.Parameters):
		job.state = JobStateFailed
		return JobStatus{State: JobStateFailed, Progress: 1, Message: "simulated failure requested by parameters"}
	case job.polls >= s.pollsToRun:
		job.state = JobStateCompleted
		job.result = simulateResults(job.req, s.now())
		return JobStatus{State: JobStateCompleted, Progress: 1}
	default:
		job.state = JobStateRunning
		return JobStatus{State: JobStateRunning, Progress: float64(job.polls) / float64(s.pollsToRun)}
	}
}

// JobResults returns the payload of a completed job
func (s *Simulator) JobResults(_ context.Context, jobID string) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, NewError("results", models.ErrorCauseUnknown, ErrJobNotFound)
	}
	if job.state != JobStateCompleted {
		return nil, NewError("results", models.ErrorCauseRemote, fmt.Errorf("job %s is %s", jobID, job.state))
	}
	return job.result, nil
}

// StopJob marks a job failed
func (s *Simulator) StopJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return NewError("stop", models.ErrorCauseUnknown, ErrJobNotFound)
	}
	if !job.state.IsTerminal() {
		job.state = JobStateFailed
	}
	return nil
}

// HealthCheck always succeeds
func (s *Simulator) HealthCheck(context.Context) error {
	return nil
}

// ActiveJobs returns the number of jobs not yet terminal
func (s *Simulator) ActiveJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, job := range s.jobs {
		if !job.state.IsTerminal() {
			n++
		}
	}
	return n
}

func shouldFail(params map[string]interface{}) bool {
	v, ok := params[FailParameter].(bool)
	return ok && v
}

// seedFor derives a stable seed from the experiment and its parameters.
func seedFor(req JobRequest) int64 {
	h := fnv.New64a()
	h.Write(req.ExperimentID[:])
	h.Write([]byte(req.ExperimentType))
	h.Write([]byte(fmt.Sprint(req.Parameters)))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

func simulateResults(req JobRequest, now time.Time) map[string]interface{} {
	rng := rand.New(rand.NewSource(seedFor(req)))

	if req.Kind == JobKindTraining {
		inSample := 0.05 + rng.Float64()*0.35
		return map[string]interface{}{
			"model_id":         "model-" + req.ExperimentID.String()[:8],
			"training_loss":    0.2 + rng.Float64()*0.5,
			"validation_loss":  0.25 + rng.Float64()*0.5,
			"epochs":           50 + rng.Intn(150),
			"in_sample_return": inSample,
		}
	}

	drift := (rng.Float64() - 0.3) * 0.002
	dailyVol := 0.004 + rng.Float64()*0.02
	daily := make([]float64, simulatedDays)
	growth := 1.0
	for i := range daily {
		daily[i] = drift + rng.NormFloat64()*dailyVol
		growth *= 1 + daily[i]
	}

	tradeCount := 20 + rng.Intn(400)
	trades := make([]float64, tradeCount)
	for i := range trades {
		trades[i] = drift*3 + rng.NormFloat64()*dailyVol*2
	}

	initial := decimal.NewFromInt(simulatedCapital)
	final := initial.Mul(decimal.NewFromFloat(growth)).Round(2)
	end := now.UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-1, 0, 0)

	return map[string]interface{}{
		"model_id":             req.ModelID,
		"daily_returns":        daily,
		"trade_returns":        trades,
		"initial_capital":      initial.StringFixed(2),
		"final_capital":        final.StringFixed(2),
		"start_date":           start.Format("2006-01-02"),
		"end_date":             end.Format("2006-01-02"),
		"out_of_sample_return": growth - 1,
	}
}
