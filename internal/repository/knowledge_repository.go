package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/research-lab/internal/database"
	"github.com/yourusername/research-lab/internal/models"
)

// PostgresKnowledgeRepository implements KnowledgeRepository for PostgreSQL
type PostgresKnowledgeRepository struct {
	db *database.DB
}

// NewPostgresKnowledgeRepository creates a new knowledge repository
func NewPostgresKnowledgeRepository(db *database.DB) *PostgresKnowledgeRepository {
	return &PostgresKnowledgeRepository{db: db}
}

// Insert stores entries in a single batch
func (r *PostgresKnowledgeRepository) Insert(ctx context.Context, entries []*models.KnowledgeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO knowledge_entries (id, experiment_id, experiment_type, entry_type, content, fitness_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query, e.ID, e.ExperimentID, string(e.ExperimentType), string(e.Type), e.Content, e.FitnessScore, e.CreatedAt)
	}

	results := r.db.GetPool().SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert knowledge entry: %w", err)
		}
	}

	return nil
}

// TopByFitness returns the entries of one type from the fittest experiments
func (r *PostgresKnowledgeRepository) TopByFitness(ctx context.Context, entryType models.KnowledgeType, limit int) ([]*models.KnowledgeEntry, error) {
	query := `
		SELECT id, experiment_id, experiment_type, entry_type, content, fitness_score, created_at
		FROM knowledge_entries
		WHERE entry_type = $1
		ORDER BY fitness_score DESC, created_at DESC
		LIMIT $2
	`

	rows, err := r.db.GetPool().Query(ctx, query, string(entryType), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.KnowledgeEntry
	for rows.Next() {
		var (
			e                 models.KnowledgeEntry
			expType, kindText string
		)
		if err := rows.Scan(&e.ID, &e.ExperimentID, &expType, &kindText, &e.Content, &e.FitnessScore, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		e.ExperimentType = models.ExperimentType(expType)
		e.Type = models.KnowledgeType(kindText)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
