package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/research-lab/internal/models"
)

// ExperimentRepository defines the interface for experiment data access
type ExperimentRepository interface {
	Create(ctx context.Context, exp *models.Experiment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	Update(ctx context.Context, exp *models.Experiment) error
	List(ctx context.Context, filter models.ExperimentFilter) ([]*models.Experiment, error)
	ListByStatus(ctx context.Context, statuses ...models.ExperimentStatus) ([]*models.Experiment, error)
	Ping(ctx context.Context) error
	Close()
}

// KnowledgeRepository defines the interface for knowledge base access
type KnowledgeRepository interface {
	Insert(ctx context.Context, entries []*models.KnowledgeEntry) error
	TopByFitness(ctx context.Context, entryType models.KnowledgeType, limit int) ([]*models.KnowledgeEntry, error)
}
