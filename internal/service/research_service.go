package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/hypothesis"
	"github.com/yourusername/research-lab/internal/logger"
	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
)

const (
	contextInsights  = 10
	contextWarnings  = 5
	refinementSpread = 0.10
)

// ResearchConfig configures research cycles
type ResearchConfig struct {
	Focus           string
	MaxHypotheses   int
	MinConfidence   float64
	DefaultPriority int
	RefineTopN      int
}

// CycleReport summarizes one research cycle
type CycleReport struct {
	SessionID       uuid.UUID   `json:"session_id"`
	Hypotheses      int         `json:"hypotheses"`
	Filtered        int         `json:"filtered"`
	Created         []uuid.UUID `json:"created"`
	Started         []uuid.UUID `json:"started"`
	Deferred        []uuid.UUID `json:"deferred"`
	Refined         []uuid.UUID `json:"refined"`
	DurationSeconds float64     `json:"duration_seconds"`
}

// ResearchService closes the research loop: it turns accumulated knowledge
// into hypotheses, hypotheses into experiments, and fit experiments into
// refined children.
type ResearchService struct {
	orchestrator *ExperimentOrchestrator
	generator    hypothesis.Generator
	knowledge    *KnowledgeService
	cfg          ResearchConfig
	logger       *logrus.Logger
	cycleLogger  *logger.ResearchLogger
	metrics      *metrics.Registry
}

// NewResearchService creates a research service. knowledge may be nil.
func NewResearchService(
	orchestrator *ExperimentOrchestrator,
	generator hypothesis.Generator,
	knowledge *KnowledgeService,
	cfg ResearchConfig,
	log *logrus.Logger,
	reg *metrics.Registry,
) *ResearchService {
	if cfg.MaxHypotheses < 1 {
		cfg.MaxHypotheses = 5
	}
	return &ResearchService{
		orchestrator: orchestrator,
		generator:    generator,
		knowledge:    knowledge,
		cfg:          cfg,
		logger:       log,
		cycleLogger:  logger.NewResearchLogger(log),
		metrics:      reg,
	}
}

// RunResearchCycle generates hypotheses from the knowledge base, creates an
// experiment per hypothesis and starts as many as the ceiling allows.
// Experiments that do not fit stay pending.
func (s *ResearchService) RunResearchCycle(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	report := &CycleReport{SessionID: uuid.New()}

	rc := hypothesis.ResearchContext{Focus: s.cfg.Focus, MaxHypotheses: s.cfg.MaxHypotheses}
	if s.knowledge != nil {
		var err error
		if rc.Insights, err = s.knowledge.TopInsights(ctx, contextInsights); err != nil {
			s.logger.WithError(err).Warn("Research cycle continuing without insights")
		}
		if rc.Warnings, err = s.knowledge.TopWarnings(ctx, contextWarnings); err != nil {
			s.logger.WithError(err).Warn("Research cycle continuing without warnings")
		}
	}

	genStart := time.Now()
	hypotheses, err := s.generator.Generate(ctx, rc)
	s.cycleLogger.LogHypothesisGeneration(rc.Focus, rc.MaxHypotheses, len(hypotheses), false,
		float64(time.Since(genStart).Microseconds())/1000)
	if err != nil {
		s.metrics.RecordResearchCycle("generation_failed")
		return nil, fmt.Errorf("failed to generate hypotheses: %w", err)
	}
	s.metrics.RecordHypothesesGenerated(len(hypotheses))
	report.Hypotheses = len(hypotheses)

	sort.SliceStable(hypotheses, func(i, j int) bool {
		return hypotheses[i].Confidence > hypotheses[j].Confidence
	})

	for _, h := range hypotheses {
		if h.Confidence < s.cfg.MinConfidence {
			report.Filtered++
			continue
		}
		exp, err := s.orchestrator.CreateExperiment(ctx, CreateRequest{
			Name:       h.Name,
			Hypothesis: h.Text,
			Type:       h.Type,
			Parameters: h.Parameters,
			Priority:   s.cfg.DefaultPriority + int(math.Round(h.Confidence*10)),
			SessionID:  &report.SessionID,
		})
		if err != nil {
			s.logger.WithError(err).WithField("hypothesis", h.Name).Warn("Failed to create experiment from hypothesis")
			continue
		}
		report.Created = append(report.Created, exp.ID)
	}

	for i, id := range report.Created {
		_, err := s.orchestrator.StartExperiment(ctx, id)
		if errors.Is(err, ErrResourceLimit) {
			report.Deferred = append(report.Deferred, report.Created[i:]...)
			break
		}
		if err != nil {
			s.logger.WithError(err).WithField("experiment_id", id).Warn("Failed to start experiment")
			report.Deferred = append(report.Deferred, id)
			continue
		}
		report.Started = append(report.Started, id)
	}

	report.DurationSeconds = time.Since(start).Seconds()
	s.metrics.RecordResearchCycle("completed")
	s.cycleLogger.LogResearchCycle(report.SessionID.String(), report.Hypotheses,
		len(report.Created), len(report.Started), len(report.Deferred))
	return report, nil
}

// RefineTopExperiments creates a child experiment for each of the n fittest
// completed experiments that have not been refined yet, with numeric
// parameters perturbed around the parent's.
func (s *ResearchService) RefineTopExperiments(ctx context.Context, n int) ([]*models.Experiment, error) {
	if n <= 0 {
		n = s.cfg.RefineTopN
	}
	if n <= 0 {
		return nil, nil
	}

	completed, err := s.orchestrator.ListExperiments(ctx, models.ExperimentFilter{
		Statuses: []models.ExperimentStatus{models.ExperimentStatusCompleted},
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(completed, func(i, j int) bool {
		return fitnessOf(completed[i]) > fitnessOf(completed[j])
	})

	children := make([]*models.Experiment, 0, n)
	for _, parent := range completed {
		if len(children) == n {
			break
		}
		parentID := parent.ID
		existing, err := s.orchestrator.ListExperiments(ctx, models.ExperimentFilter{ParentID: &parentID, Limit: 1})
		if err != nil {
			return children, err
		}
		if len(existing) > 0 {
			continue
		}

		child, err := s.orchestrator.CreateExperiment(ctx, CreateRequest{
			Name:         fmt.Sprintf("%s (refined)", parent.Name),
			Hypothesis:   fmt.Sprintf("Refinement of %q around its best parameters", parent.Name),
			Type:         models.ExperimentTypeIndicatorOptimization,
			Parameters:   perturbParameters(parent.ID, parent.Parameters),
			Priority:     parent.Priority + 1,
			TimeoutHours: parent.TimeoutHours,
			SessionID:    parent.SessionID,
			ParentID:     &parentID,
		})
		if err != nil {
			s.logger.WithError(err).WithField("parent_id", parent.ID).Warn("Failed to create refinement")
			continue
		}
		children = append(children, child)
	}
	return children, nil
}

// StartPending starts pending experiments, highest priority first, until the
// concurrency ceiling is reached.
func (s *ResearchService) StartPending(ctx context.Context) ([]uuid.UUID, error) {
	if s.orchestrator.AvailableSlots() == 0 {
		return nil, nil
	}

	pending, err := s.orchestrator.ListExperiments(ctx, models.ExperimentFilter{
		Statuses: []models.ExperimentStatus{models.ExperimentStatusPending},
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	var started []uuid.UUID
	for _, exp := range pending {
		_, err := s.orchestrator.StartExperiment(ctx, exp.ID)
		if errors.Is(err, ErrResourceLimit) {
			break
		}
		if err != nil {
			s.logger.WithError(err).WithField("experiment_id", exp.ID).Warn("Failed to start pending experiment")
			continue
		}
		started = append(started, exp.ID)
	}
	return started, nil
}

func fitnessOf(exp *models.Experiment) float64 {
	if exp.Results == nil {
		return 0
	}
	return exp.Results.FitnessScore
}

// perturbParameters moves each numeric parameter by up to ±10%. The rng is
// seeded from the parent id so a parent always yields the same child.
func perturbParameters(parentID uuid.UUID, params map[string]interface{}) map[string]interface{} {
	h := fnv.New64a()
	h.Write(parentID[:])
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]interface{}, len(params))
	for _, k := range keys {
		factor := 1 + (rng.Float64()*2-1)*refinementSpread
		switch v := params[k].(type) {
		case int:
			out[k] = perturbInt(v, factor)
		case int64:
			out[k] = int64(perturbInt(int(v), factor))
		case float64:
			if v == math.Trunc(v) && math.Abs(v) >= 1 {
				out[k] = float64(perturbInt(int(v), factor))
			} else {
				out[k] = v * factor
			}
		default:
			out[k] = v
		}
	}
	return out
}

func perturbInt(v int, factor float64) int {
	p := int(math.Round(float64(v) * factor))
	if p == 0 && v != 0 {
		return v
	}
	return p
}
