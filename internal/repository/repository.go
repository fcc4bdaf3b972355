package repository

import (
	"fmt"

	"github.com/yourusername/research-lab/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Experiment ExperimentRepository
	Knowledge  KnowledgeRepository
}

// NewRepositories creates the PostgreSQL-backed repositories
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Experiment: NewPostgresExperimentRepository(db),
		Knowledge:  NewPostgresKnowledgeRepository(db),
	}, nil
}

// NewMemoryRepositories creates process-local repositories
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Experiment: NewMemoryExperimentRepository(),
		Knowledge:  NewMemoryKnowledgeRepository(),
	}
}
