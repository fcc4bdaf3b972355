// Package scheduler runs research jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/service"
)

// ResearchRunner is the research work the scheduler triggers
type ResearchRunner interface {
	RunResearchCycle(ctx context.Context) (*service.CycleReport, error)
	RefineTopExperiments(ctx context.Context, n int) ([]*models.Experiment, error)
	StartPending(ctx context.Context) ([]uuid.UUID, error)
}

// Scheduler manages scheduled research jobs
type Scheduler struct {
	cron            *cron.Cron
	research        ResearchRunner
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler. Overlapping runs of the same job are skipped.
func NewScheduler(research ResearchRunner, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		research:        research,
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		jobTimeout:      10 * time.Minute,
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleResearchCycle runs a research cycle on cronExpression
func (s *Scheduler) ScheduleResearchCycle(cronExpression string) error {
	return s.add("research_cycle", cronExpression, func(ctx context.Context) error {
		report, err := s.research.RunResearchCycle(ctx)
		if err != nil {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"session_id": report.SessionID,
			"started":    len(report.Started),
			"deferred":   len(report.Deferred),
		}).Info("Scheduled research cycle completed")
		return nil
	})
}

// ScheduleRefinement refines the top n experiments on cronExpression
func (s *Scheduler) ScheduleRefinement(cronExpression string, n int) error {
	return s.add("refinement", cronExpression, func(ctx context.Context) error {
		children, err := s.research.RefineTopExperiments(ctx, n)
		if err != nil {
			return err
		}
		s.logger.WithField("created", len(children)).Info("Scheduled refinement completed")
		return nil
	})
}

// ScheduleStartPending fills free slots with pending experiments every interval
func (s *Scheduler) ScheduleStartPending(interval time.Duration) error {
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	return s.add("start_pending", fmt.Sprintf("@every %s", interval), func(ctx context.Context) error {
		started, err := s.research.StartPending(ctx)
		if err != nil {
			return err
		}
		if len(started) > 0 {
			s.logger.WithField("started", len(started)).Info("Started pending experiments")
		}
		return nil
	})
}

func (s *Scheduler) add(name, spec string, job func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		if err := job(ctx); err != nil {
			s.logger.WithError(err).WithField("job", name).Error("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add %s job: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{"job": name, "schedule": spec}).Info("Scheduled job")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler jobs still running after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}

// Entries returns the scheduled cron entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		if entry := s.cron.Entry(jobID); entry.Valid() {
			entries = append(entries, entry)
		}
	}
	return entries
}
