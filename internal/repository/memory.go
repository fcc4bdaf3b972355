package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/yourusername/research-lab/internal/models"
)

// MemoryExperimentRepository keeps experiments in process memory.
// Returned experiments are copies; callers cannot mutate stored state.
type MemoryExperimentRepository struct {
	mu          sync.RWMutex
	experiments map[uuid.UUID]*models.Experiment
}

// NewMemoryExperimentRepository creates an empty in-memory store
func NewMemoryExperimentRepository() *MemoryExperimentRepository {
	return &MemoryExperimentRepository{experiments: make(map[uuid.UUID]*models.Experiment)}
}

// Create inserts a new experiment
func (r *MemoryExperimentRepository) Create(_ context.Context, exp *models.Experiment) error {
	if err := exp.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experiments[exp.ID]; ok {
		return models.ErrDuplicateKey
	}
	r.experiments[exp.ID] = exp.Clone()
	return nil
}

// GetByID retrieves an experiment by ID
func (r *MemoryExperimentRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exp, ok := r.experiments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return exp.Clone(), nil
}

// Update replaces a stored experiment
func (r *MemoryExperimentRepository) Update(_ context.Context, exp *models.Experiment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experiments[exp.ID]; !ok {
		return models.ErrNotFound
	}
	r.experiments[exp.ID] = exp.Clone()
	return nil
}

// List returns experiments matching the filter, newest first
func (r *MemoryExperimentRepository) List(_ context.Context, filter models.ExperimentFilter) ([]*models.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Experiment
	for _, exp := range r.experiments {
		if matchesFilter(exp, filter) {
			out = append(out, exp.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListByStatus returns every experiment in one of the given statuses
func (r *MemoryExperimentRepository) ListByStatus(ctx context.Context, statuses ...models.ExperimentStatus) ([]*models.Experiment, error) {
	return r.List(ctx, models.ExperimentFilter{Statuses: statuses})
}

// Ping always succeeds
func (r *MemoryExperimentRepository) Ping(context.Context) error { return nil }

// Close is a no-op
func (r *MemoryExperimentRepository) Close() {}

func matchesFilter(exp *models.Experiment, filter models.ExperimentFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if exp.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.SessionID != nil && (exp.SessionID == nil || *exp.SessionID != *filter.SessionID) {
		return false
	}
	if filter.ParentID != nil && (exp.ParentID == nil || *exp.ParentID != *filter.ParentID) {
		return false
	}
	if filter.Type != "" && exp.Type != filter.Type {
		return false
	}
	return true
}

// MemoryKnowledgeRepository keeps knowledge entries in process memory
type MemoryKnowledgeRepository struct {
	mu      sync.RWMutex
	entries []*models.KnowledgeEntry
}

// NewMemoryKnowledgeRepository creates an empty in-memory knowledge base
func NewMemoryKnowledgeRepository() *MemoryKnowledgeRepository {
	return &MemoryKnowledgeRepository{}
}

// Insert appends entries
func (r *MemoryKnowledgeRepository) Insert(_ context.Context, entries []*models.KnowledgeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		copied := *e
		r.entries = append(r.entries, &copied)
	}
	return nil
}

// TopByFitness returns the entries of one type from the fittest experiments
func (r *MemoryKnowledgeRepository) TopByFitness(_ context.Context, entryType models.KnowledgeType, limit int) ([]*models.KnowledgeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.KnowledgeEntry
	for _, e := range r.entries {
		if e.Type == entryType {
			copied := *e
			out = append(out, &copied)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FitnessScore != out[j].FitnessScore {
			return out[i].FitnessScore > out[j].FitnessScore
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
