package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/analysis"
	"github.com/yourusername/research-lab/internal/events"
	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/repository"
)

// KnowledgeService turns analysis findings into knowledge base entries that
// feed the next research cycle.
type KnowledgeService struct {
	repo      repository.KnowledgeRepository
	publisher events.Publisher
	logger    *logrus.Logger
	metrics   *metrics.Registry
	now       func() time.Time
}

// NewKnowledgeService creates a knowledge service
func NewKnowledgeService(repo repository.KnowledgeRepository, publisher events.Publisher, log *logrus.Logger, reg *metrics.Registry) *KnowledgeService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &KnowledgeService{
		repo:      repo,
		publisher: publisher,
		logger:    log,
		metrics:   reg,
		now:       time.Now,
	}
}

// Record stores the findings of an analyzed experiment. Findings of a
// non-completed experiment are stored as failures.
func (s *KnowledgeService) Record(ctx context.Context, exp *models.Experiment, result *analysis.AnalysisResult) error {
	if result == nil {
		return nil
	}

	now := s.now().UTC()
	var entries []*models.KnowledgeEntry
	add := func(kind models.KnowledgeType, texts []string) {
		for _, text := range texts {
			entries = append(entries, &models.KnowledgeEntry{
				ID:             uuid.New(),
				ExperimentID:   exp.ID,
				ExperimentType: exp.Type,
				Type:           kind,
				Content:        text,
				FitnessScore:   result.FitnessScore,
				CreatedAt:      now,
			})
		}
	}

	if exp.Status == models.ExperimentStatusCompleted {
		add(models.KnowledgeTypeInsight, result.Insights)
		add(models.KnowledgeTypeWarning, result.Warnings)
	} else {
		add(models.KnowledgeTypeFailure, result.Insights)
	}
	add(models.KnowledgeTypeRecommendation, result.Recommendations)

	if len(entries) == 0 {
		return nil
	}
	if err := s.repo.Insert(ctx, entries); err != nil {
		return fmt.Errorf("failed to store knowledge for %s: %w", exp.ID, err)
	}

	counts := make(map[models.KnowledgeType]int)
	for _, e := range entries {
		counts[e.Type]++
	}
	payload := make(map[string]interface{}, len(counts))
	for kind, n := range counts {
		s.metrics.RecordKnowledgeEntries(string(kind), n)
		payload[string(kind)] = n
	}

	s.logger.WithFields(logrus.Fields{
		"experiment_id": exp.ID,
		"entries":       len(entries),
	}).Debug("Recorded experiment knowledge")

	_ = s.publisher.Publish(ctx, events.Event{
		Type:           events.TypeKnowledgeRecorded,
		ExperimentID:   exp.ID,
		ExperimentName: exp.Name,
		Payload:        payload,
		Timestamp:      now,
	})
	return nil
}

// TopInsights returns the insight texts of the fittest experiments
func (s *KnowledgeService) TopInsights(ctx context.Context, limit int) ([]string, error) {
	return s.top(ctx, models.KnowledgeTypeInsight, limit)
}

// TopWarnings returns warning texts, topped up with failure findings
func (s *KnowledgeService) TopWarnings(ctx context.Context, limit int) ([]string, error) {
	warnings, err := s.top(ctx, models.KnowledgeTypeWarning, limit)
	if err != nil {
		return nil, err
	}
	if len(warnings) >= limit {
		return warnings, nil
	}
	failures, err := s.top(ctx, models.KnowledgeTypeFailure, limit-len(warnings))
	if err != nil {
		return nil, err
	}
	return append(warnings, failures...), nil
}

func (s *KnowledgeService) top(ctx context.Context, kind models.KnowledgeType, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	entries, err := s.repo.TopByFitness(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s knowledge: %w", kind, err)
	}

	seen := make(map[string]bool, len(entries))
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if seen[e.Content] {
			continue
		}
		seen[e.Content] = true
		texts = append(texts, e.Content)
	}
	return texts, nil
}
