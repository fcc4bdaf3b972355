// Package service implements the research lab's experiment workflows.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/analysis"
	"github.com/yourusername/research-lab/internal/events"
	"github.com/yourusername/research-lab/internal/logger"
	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/platform"
	"github.com/yourusername/research-lab/internal/repository"
)

// Execution phases recorded in ErrorInfo.Phase.
const (
	PhaseInitialization = "initialization"
	PhaseTraining       = "training"
	PhaseBacktest       = "backtest"
	PhaseAnalysis       = "analysis"
	PhaseCompletion     = "completion"
)

const (
	finalWriteTimeout    = 30 * time.Second
	interruptedMessage   = "experiment interrupted by system restart"
	shutdownCancelReason = "orchestrator shutdown"
)

// ExperimentExecutor runs the remote phases of an experiment
type ExperimentExecutor interface {
	RunTraining(ctx context.Context, exp *models.Experiment) (map[string]interface{}, error)
	RunBacktest(ctx context.Context, exp *models.Experiment, training map[string]interface{}) (map[string]interface{}, error)
}

// ResultsAnalyzer scores experiment outcomes
type ResultsAnalyzer interface {
	Analyze(ctx context.Context, outcome analysis.Outcome) (*analysis.AnalysisResult, error)
}

// KnowledgeRecorder stores findings from analyzed experiments
type KnowledgeRecorder interface {
	Record(ctx context.Context, exp *models.Experiment, result *analysis.AnalysisResult) error
}

// OrchestratorConfig bounds execution
type OrchestratorConfig struct {
	MaxConcurrentExperiments int
	DefaultTimeoutHours      float64
}

// CreateRequest describes a new experiment
type CreateRequest struct {
	Name         string                 `json:"name"`
	Hypothesis   string                 `json:"hypothesis"`
	Type         models.ExperimentType  `json:"experiment_type"`
	Parameters   map[string]interface{} `json:"parameters"`
	Priority     int                    `json:"priority"`
	TimeoutHours float64                `json:"timeout_hours"`
	SessionID    *uuid.UUID             `json:"session_id,omitempty"`
	ParentID     *uuid.UUID             `json:"parent_id,omitempty"`
}

// OrchestratorStats are the process-local counters
type OrchestratorStats struct {
	TotalExperiments     int64 `json:"total_experiments"`
	RunningExperiments   int   `json:"running_experiments"`
	CompletedExperiments int64 `json:"completed_experiments"`
	FailedExperiments    int64 `json:"failed_experiments"`
	CancelledExperiments int64 `json:"cancelled_experiments"`
	MaxConcurrent        int   `json:"max_concurrent_experiments"`
}

// StatusReport is the persisted experiment plus live execution state
type StatusReport struct {
	Experiment *models.Experiment `json:"experiment"`
	IsRunning  bool               `json:"is_running"`
	Stats      OrchestratorStats  `json:"orchestrator"`
}

// runningExperiment is the in-memory handle of an executing task.
type runningExperiment struct {
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	mu           sync.Mutex
	cancelled    bool
	cancelReason string
}

func (r *runningExperiment) requestCancel(reason string) {
	r.mu.Lock()
	if !r.cancelled {
		r.cancelled = true
		r.cancelReason = reason
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *runningExperiment) cancelRequested() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled, r.cancelReason
}

// ExperimentOrchestrator owns the experiment state machine. Every status
// change goes through transition, which holds the experiment's lock.
type ExperimentOrchestrator struct {
	repo      repository.ExperimentRepository
	executor  ExperimentExecutor
	analyzer  ResultsAnalyzer
	knowledge KnowledgeRecorder
	publisher events.Publisher
	cfg       OrchestratorConfig

	logger    *logrus.Logger
	expLogger *logger.ExperimentLogger
	audit     *logger.AuditLogger
	metrics   *metrics.Registry

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu           sync.Mutex
	running      map[uuid.UUID]*runningExperiment
	locks        map[uuid.UUID]*sync.Mutex
	initialized  bool
	shuttingDown bool
	wg           sync.WaitGroup

	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64

	now func() time.Time
}

// NewExperimentOrchestrator creates an orchestrator. knowledge, publisher and
// reg may be nil.
func NewExperimentOrchestrator(
	repo repository.ExperimentRepository,
	executor ExperimentExecutor,
	analyzer ResultsAnalyzer,
	knowledge KnowledgeRecorder,
	publisher events.Publisher,
	cfg OrchestratorConfig,
	log *logrus.Logger,
	reg *metrics.Registry,
) *ExperimentOrchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.MaxConcurrentExperiments < 1 {
		cfg.MaxConcurrentExperiments = 1
	}
	if cfg.DefaultTimeoutHours <= 0 {
		cfg.DefaultTimeoutHours = 24
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &ExperimentOrchestrator{
		repo:       repo,
		executor:   executor,
		analyzer:   analyzer,
		knowledge:  knowledge,
		publisher:  publisher,
		cfg:        cfg,
		logger:     log,
		expLogger:  logger.NewExperimentLogger(log),
		audit:      logger.NewAuditLogger(log),
		metrics:    reg,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		running:    make(map[uuid.UUID]*runningExperiment),
		locks:      make(map[uuid.UUID]*sync.Mutex),
		now:        time.Now,
	}
}

// Initialize runs the recovery sweep and opens the orchestrator for work.
// Experiments left in flight by a previous process are marked failed.
func (o *ExperimentOrchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.initialized {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	orphans, err := o.repo.ListByStatus(ctx, models.InFlightStatuses...)
	if err != nil {
		o.logger.WithError(err).Error("Recovery sweep could not list in-flight experiments")
	}

	var recovered []string
	for _, exp := range orphans {
		at := o.now().UTC()
		info := &models.ErrorInfo{
			Kind:       models.ErrorKindSystemInterruption,
			Type:       "SystemInterruption",
			Message:    interruptedMessage,
			Phase:      phaseForStatus(exp.Status),
			OccurredAt: at,
		}
		if exp.StartedAt != nil {
			info.ElapsedSeconds = at.Sub(*exp.StartedAt).Seconds()
		}
		if _, err := o.transition(ctx, exp.ID, models.ExperimentStatusFailed, func(e *models.Experiment) {
			e.Results = nil
			e.ErrorInfo = info
		}); err != nil {
			o.logger.WithError(err).WithField("experiment_id", exp.ID).Warn("Recovery sweep could not fail experiment")
		} else {
			recovered = append(recovered, exp.ID.String())
		}
		o.dropLock(exp.ID)
	}
	if len(recovered) > 0 {
		o.audit.LogRecoverySweep(len(recovered), recovered)
	}

	o.mu.Lock()
	o.initialized = true
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"max_concurrent": o.cfg.MaxConcurrentExperiments,
		"recovered":      len(recovered),
	}).Info("Experiment orchestrator initialized")
	return nil
}

// CreateExperiment persists a new pending experiment
func (o *ExperimentOrchestrator) CreateExperiment(ctx context.Context, req CreateRequest) (*models.Experiment, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	timeout := req.TimeoutHours
	if timeout == 0 {
		timeout = o.cfg.DefaultTimeoutHours
	}
	params := req.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}

	now := o.now().UTC()
	exp := &models.Experiment{
		ID:           uuid.New(),
		SessionID:    req.SessionID,
		ParentID:     req.ParentID,
		Name:         req.Name,
		Hypothesis:   req.Hypothesis,
		Type:         req.Type,
		Parameters:   params,
		Priority:     req.Priority,
		TimeoutHours: timeout,
		Status:       models.ExperimentStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}

	if err := o.repo.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}

	o.total.Add(1)
	o.metrics.RecordExperimentCreated()
	o.expLogger.LogExperimentCreated(exp.ID.String(), exp.Name, string(exp.Type), exp.Priority, exp.TimeoutHours)
	o.publish(ctx, events.Event{
		Type:           events.TypeExperimentCreated,
		ExperimentID:   exp.ID,
		ExperimentName: exp.Name,
		To:             exp.Status,
		Timestamp:      now,
	})
	return exp, nil
}

// StartExperiment admits a pending experiment and launches its execution task.
// The ceiling check and slot reservation happen under one lock, so concurrent
// starts never overshoot the ceiling.
func (o *ExperimentOrchestrator) StartExperiment(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	exp, err := o.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.Status != models.ExperimentStatusPending {
		return nil, fmt.Errorf("%w: %s is %s, expected pending", ErrInvalidState, id, exp.Status)
	}

	o.mu.Lock()
	if o.shuttingDown {
		o.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, ok := o.running[id]; ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is already running", ErrInvalidState, id)
	}
	if n := len(o.running); n >= o.cfg.MaxConcurrentExperiments {
		o.mu.Unlock()
		o.metrics.RecordAdmissionRejected()
		o.expLogger.LogAdmissionRejected(id.String(), n, o.cfg.MaxConcurrentExperiments)
		return nil, fmt.Errorf("%w: %d of %d slots in use", ErrResourceLimit, n, o.cfg.MaxConcurrentExperiments)
	}
	taskCtx, cancel := context.WithCancel(o.baseCtx)
	run := &runningExperiment{cancel: cancel, done: make(chan struct{}), startedAt: o.now().UTC()}
	o.running[id] = run
	o.wg.Add(1)
	o.metrics.SetExperimentsRunning(len(o.running))
	o.mu.Unlock()

	started, err := o.transition(ctx, id, models.ExperimentStatusInitializing, func(e *models.Experiment) {
		at := run.startedAt
		e.StartedAt = &at
	})
	if err != nil {
		cancel()
		o.release(id, run)
		return nil, err
	}

	go o.execute(taskCtx, run, started)
	return started, nil
}

// CancelExperiment cancels a running experiment and waits until its task has
// persisted the cancellation or ctx ends. It returns ErrInvalidState when the
// experiment reached another terminal status first.
func (o *ExperimentOrchestrator) CancelExperiment(ctx context.Context, id uuid.UUID, reason string) error {
	if err := o.checkInitialized(); err != nil {
		return err
	}

	o.mu.Lock()
	run, ok := o.running[id]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}

	if reason == "" {
		reason = "cancelled by user"
	}
	o.audit.LogCancellation(id.String(), "requested", reason)
	run.requestCancel(reason)

	select {
	case <-run.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	exp, err := o.get(ctx, id)
	if err != nil {
		return err
	}
	if exp.Status != models.ExperimentStatusCancelled {
		return fmt.Errorf("%w: %s finished as %s before the cancellation took effect", ErrInvalidState, id, exp.Status)
	}
	return nil
}

// GetStatus returns the stored experiment with live execution state
func (o *ExperimentOrchestrator) GetStatus(ctx context.Context, id uuid.UUID) (*StatusReport, error) {
	if err := o.checkInitialized(); err != nil {
		return nil, err
	}

	exp, err := o.get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &StatusReport{
		Experiment: exp,
		IsRunning:  o.IsRunning(id),
		Stats:      o.Stats(),
	}, nil
}

// ListExperiments returns stored experiments matching filter
func (o *ExperimentOrchestrator) ListExperiments(ctx context.Context, filter models.ExperimentFilter) ([]*models.Experiment, error) {
	if err := o.checkInitialized(); err != nil {
		return nil, err
	}
	exps, err := o.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	return exps, nil
}

// IsRunning reports whether this process is executing id
func (o *ExperimentOrchestrator) IsRunning(id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[id]
	return ok
}

// Stats returns the orchestrator counters
func (o *ExperimentOrchestrator) Stats() OrchestratorStats {
	o.mu.Lock()
	running := len(o.running)
	o.mu.Unlock()

	return OrchestratorStats{
		TotalExperiments:     o.total.Load(),
		RunningExperiments:   running,
		CompletedExperiments: o.completed.Load(),
		FailedExperiments:    o.failed.Load(),
		CancelledExperiments: o.cancelled.Load(),
		MaxConcurrent:        o.cfg.MaxConcurrentExperiments,
	}
}

// AvailableSlots returns how many more experiments can start now
func (o *ExperimentOrchestrator) AvailableSlots() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n := o.cfg.MaxConcurrentExperiments - len(o.running); n > 0 {
		return n
	}
	return 0
}

// Ping checks the experiment store
func (o *ExperimentOrchestrator) Ping(ctx context.Context) error {
	return o.repo.Ping(ctx)
}

// Shutdown cancels every running experiment, waits for each task to persist
// its cancellation, then closes the store.
func (o *ExperimentOrchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.shuttingDown {
		o.mu.Unlock()
		return nil
	}
	o.shuttingDown = true
	inFlight := make([]string, 0, len(o.running))
	for id, run := range o.running {
		inFlight = append(inFlight, id.String())
		run.requestCancel(shutdownCancelReason)
	}
	o.mu.Unlock()

	o.audit.LogShutdown(shutdownCancelReason, map[string]interface{}{
		"running_experiments": inFlight,
		"stats":               o.Stats(),
	})
	o.baseCancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("timed out waiting for %d experiments: %w", len(inFlight), ctx.Err())
		o.logger.WithError(err).Error("Shutdown did not drain running experiments")
	}

	o.repo.Close()
	o.logger.Info("Experiment orchestrator stopped")
	return err
}

// execute drives one experiment to a terminal status. The deferred release
// runs on every path, including panics.
func (o *ExperimentOrchestrator) execute(ctx context.Context, run *runningExperiment, exp *models.Experiment) {
	defer o.release(exp.ID, run)

	phase := PhaseInitialization
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithField("experiment_id", exp.ID).WithField("panic", r).Error("Experiment task panicked")
			o.finishWithError(ctx, run, exp, phase, fmt.Errorf("panic during %s: %v", phase, r))
		}
	}()

	var (
		training, backtest map[string]interface{}
		result             *analysis.AnalysisResult
		err                error
	)

	step := func(next string, fn func() error) bool {
		if err != nil {
			return false
		}
		phase = next
		if err = ctx.Err(); err != nil {
			return false
		}
		err = fn()
		return err == nil
	}

	step(PhaseInitialization, func() error {
		var e error
		exp, e = o.transition(ctx, exp.ID, models.ExperimentStatusRunning, nil)
		return e
	})
	step(PhaseTraining, func() error {
		var e error
		training, e = o.executor.RunTraining(ctx, exp)
		return e
	})
	step(PhaseBacktest, func() error {
		var e error
		if exp, e = o.transition(ctx, exp.ID, models.ExperimentStatusAnalyzing, nil); e != nil {
			return e
		}
		backtest, e = o.executor.RunBacktest(ctx, exp, training)
		return e
	})
	step(PhaseAnalysis, func() error {
		var e error
		result, e = o.analyzer.Analyze(ctx, analysis.Outcome{
			ExperimentID:    exp.ID,
			Status:          models.ExperimentStatusCompleted,
			TrainingResults: training,
			BacktestResults: backtest,
		})
		return e
	})
	step(PhaseCompletion, func() error { return ctx.Err() })

	if err != nil {
		o.finishWithError(ctx, run, exp, phase, err)
		return
	}
	o.finishCompleted(ctx, run, exp, training, backtest, result)
}

// finishCompleted persists completed. If that write fails the experiment is
// failed instead, so it never stays in analyzing.
func (o *ExperimentOrchestrator) finishCompleted(taskCtx context.Context, run *runningExperiment, exp *models.Experiment, training, backtest map[string]interface{}, result *analysis.AnalysisResult) {
	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()

	final, err := o.transition(ctx, exp.ID, models.ExperimentStatusCompleted, func(e *models.Experiment) {
		e.Results = result.ToResults(training, backtest)
		e.ErrorInfo = nil
	})
	if err != nil {
		o.logger.WithError(err).WithField("experiment_id", exp.ID).Error("Failed to persist completed experiment")
		o.finishWithError(taskCtx, run, exp, PhaseCompletion, err)
		return
	}

	duration := o.now().Sub(run.startedAt)
	o.completed.Add(1)
	o.metrics.RecordExperimentFinished(string(models.ExperimentStatusCompleted), string(final.Type), duration)
	o.metrics.RecordFitnessScore(result.FitnessScore)
	o.expLogger.LogExperimentCompleted(final.ID.String(), result.FitnessScore, string(result.RiskProfile), duration.Seconds())
	o.recordKnowledge(ctx, final, result)
}

// finishWithError persists failed, or cancelled when the task was cancelled on request.
func (o *ExperimentOrchestrator) finishWithError(taskCtx context.Context, run *runningExperiment, exp *models.Experiment, phase string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()

	at := o.now().UTC()
	elapsed := at.Sub(run.startedAt).Seconds()

	if requested, reason := run.cancelRequested(); requested && taskCtx.Err() != nil {
		final, err := o.transition(ctx, exp.ID, models.ExperimentStatusCancelled, func(e *models.Experiment) {
			e.Results = nil
			e.ErrorInfo = &models.ErrorInfo{
				Kind:           models.ErrorKindCancelled,
				Type:           "Cancelled",
				Message:        reason,
				Phase:          phase,
				ElapsedSeconds: elapsed,
				OccurredAt:     at,
			}
		})
		if err != nil {
			o.logger.WithError(err).WithField("experiment_id", exp.ID).Error("Failed to persist cancelled experiment")
			return
		}
		o.cancelled.Add(1)
		o.metrics.RecordExperimentFinished(string(models.ExperimentStatusCancelled), string(final.Type), o.now().Sub(run.startedAt))
		o.audit.LogCancellation(final.ID.String(), string(final.Status), reason)
		return
	}

	info := &models.ErrorInfo{
		Kind:           models.ErrorKindExecution,
		Cause:          platform.CauseOf(cause),
		Type:           errorTypeName(cause),
		Message:        cause.Error(),
		Phase:          phase,
		ElapsedSeconds: elapsed,
		OccurredAt:     at,
	}
	final, err := o.transition(ctx, exp.ID, models.ExperimentStatusFailed, func(e *models.Experiment) {
		e.Results = nil
		e.ErrorInfo = info
	})
	if err != nil {
		o.logger.WithError(err).WithField("experiment_id", exp.ID).Error("Failed to persist failed experiment")
		return
	}

	o.failed.Add(1)
	o.metrics.RecordExperimentFinished(string(models.ExperimentStatusFailed), string(final.Type), o.now().Sub(run.startedAt))
	o.expLogger.LogExperimentFailed(final.ID.String(), phase, info.Type, info.Message, elapsed)

	if result, err := o.analyzer.Analyze(ctx, analysis.FromExperiment(final)); err == nil {
		o.recordKnowledge(ctx, final, result)
	}
}

func (o *ExperimentOrchestrator) recordKnowledge(ctx context.Context, exp *models.Experiment, result *analysis.AnalysisResult) {
	if o.knowledge == nil {
		return
	}
	if err := o.knowledge.Record(ctx, exp, result); err != nil {
		o.logger.WithError(err).WithField("experiment_id", exp.ID).Warn("Failed to record knowledge")
	}
}

// transition moves id to status under the experiment's lock, re-reading the
// stored row so the check always sees the latest status. The event is
// published after the lock is released.
func (o *ExperimentOrchestrator) transition(ctx context.Context, id uuid.UUID, to models.ExperimentStatus, mutate func(*models.Experiment)) (*models.Experiment, error) {
	exp, from, err := o.applyTransition(ctx, id, to, mutate)
	if err != nil {
		return nil, err
	}

	o.expLogger.LogStateTransition(id.String(), string(from), string(to))
	o.publish(ctx, events.Event{
		Type:           events.TypeExperimentTransition,
		ExperimentID:   id,
		ExperimentName: exp.Name,
		From:           from,
		To:             to,
		Timestamp:      exp.UpdatedAt,
	})
	return exp, nil
}

func (o *ExperimentOrchestrator) applyTransition(ctx context.Context, id uuid.UUID, to models.ExperimentStatus, mutate func(*models.Experiment)) (*models.Experiment, models.ExperimentStatus, error) {
	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	exp, err := o.get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	from := exp.Status
	if !from.CanTransition(to) {
		return nil, from, fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidState, id, from, to)
	}

	now := o.now().UTC()
	exp.Status = to
	exp.UpdatedAt = now
	if to.IsTerminal() {
		exp.CompletedAt = &now
	}
	if mutate != nil {
		mutate(exp)
	}

	if err := o.repo.Update(ctx, exp); err != nil {
		return nil, from, fmt.Errorf("failed to persist %s -> %s: %w", from, to, err)
	}
	return exp, from, nil
}

func (o *ExperimentOrchestrator) lockFor(id uuid.UUID) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[id] = lock
	}
	return lock
}

// dropLock forgets id's lock entry. Only safe when no task owns id.
func (o *ExperimentOrchestrator) dropLock(id uuid.UUID) {
	o.mu.Lock()
	delete(o.locks, id)
	o.mu.Unlock()
}

// release frees the running slot and the experiment's lock entry.
func (o *ExperimentOrchestrator) release(id uuid.UUID, run *runningExperiment) {
	run.cancel()

	o.mu.Lock()
	if o.running[id] == run {
		delete(o.running, id)
	}
	delete(o.locks, id)
	o.metrics.SetExperimentsRunning(len(o.running))
	o.mu.Unlock()

	close(run.done)
	o.wg.Done()
}

func (o *ExperimentOrchestrator) get(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	exp, err := o.repo.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrExperimentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load experiment %s: %w", id, err)
	}
	return exp, nil
}

func (o *ExperimentOrchestrator) publish(ctx context.Context, event events.Event) {
	// Sinks log their own failures. Callers must not hold an experiment lock.
	_ = o.publisher.Publish(ctx, event)
}

func (o *ExperimentOrchestrator) checkInitialized() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (o *ExperimentOrchestrator) checkOpen() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initialized {
		return ErrNotInitialized
	}
	if o.shuttingDown {
		return ErrShuttingDown
	}
	return nil
}

func phaseForStatus(status models.ExperimentStatus) string {
	switch status {
	case models.ExperimentStatusInitializing:
		return PhaseInitialization
	case models.ExperimentStatusRunning:
		return PhaseTraining
	case models.ExperimentStatusAnalyzing:
		return PhaseBacktest
	default:
		return ""
	}
}

// errorTypeName names the most specific error type in err's chain, skipping
// fmt wrappers.
func errorTypeName(err error) string {
	for err != nil {
		name := fmt.Sprintf("%T", err)
		if name != "*fmt.wrapError" && name != "*fmt.wrapErrors" {
			return name
		}
		next := errors.Unwrap(err)
		if next == nil {
			return name
		}
		err = next
	}
	return "<nil>"
}
