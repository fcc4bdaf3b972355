package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/research-lab/internal/database"
	"github.com/yourusername/research-lab/internal/models"
)

const experimentColumns = `id, session_id, parent_id, name, hypothesis, experiment_type, parameters,
	priority, timeout_hours, status, results, error_info, created_at, started_at, completed_at, updated_at`

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresExperimentRepository implements ExperimentRepository for PostgreSQL
type PostgresExperimentRepository struct {
	db *database.DB
}

// NewPostgresExperimentRepository creates a new experiment repository
func NewPostgresExperimentRepository(db *database.DB) *PostgresExperimentRepository {
	return &PostgresExperimentRepository{db: db}
}

// Create inserts a new experiment
func (r *PostgresExperimentRepository) Create(ctx context.Context, exp *models.Experiment) error {
	if err := exp.Validate(); err != nil {
		return err
	}

	params, results, errorInfo, err := encodeExperiment(exp)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO experiments (` + experimentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.GetPool().Exec(ctx, query,
		exp.ID, exp.SessionID, exp.ParentID, exp.Name, exp.Hypothesis, string(exp.Type), params,
		exp.Priority, exp.TimeoutHours, string(exp.Status), results, errorInfo,
		exp.CreatedAt, exp.StartedAt, exp.CompletedAt, exp.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create experiment: %w", err)
	}

	return nil
}

// GetByID retrieves an experiment by ID
func (r *PostgresExperimentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE id = $1`

	exp, err := scanExperiment(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}

	return exp, nil
}

// Update overwrites the mutable columns of an experiment
func (r *PostgresExperimentRepository) Update(ctx context.Context, exp *models.Experiment) error {
	params, results, errorInfo, err := encodeExperiment(exp)
	if err != nil {
		return err
	}

	query := `
		UPDATE experiments SET
			name = $2, hypothesis = $3, parameters = $4, priority = $5, timeout_hours = $6,
			status = $7, results = $8, error_info = $9, started_at = $10, completed_at = $11,
			updated_at = $12
		WHERE id = $1
	`
	commandTag, err := r.db.GetPool().Exec(ctx, query,
		exp.ID, exp.Name, exp.Hypothesis, params, exp.Priority, exp.TimeoutHours,
		string(exp.Status), results, errorInfo, exp.StartedAt, exp.CompletedAt, exp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// List returns experiments matching the filter, newest first
func (r *PostgresExperimentRepository) List(ctx context.Context, filter models.ExperimentFilter) ([]*models.Experiment, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.SessionID != nil {
		args = append(args, *filter.SessionID)
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.ParentID != nil {
		args = append(args, *filter.ParentID)
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conditions = append(conditions, fmt.Sprintf("experiment_type = $%d", len(args)))
	}

	query := `SELECT ` + experimentColumns + ` FROM experiments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*models.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, exp)
	}

	return experiments, rows.Err()
}

// ListByStatus returns every experiment in one of the given statuses
func (r *PostgresExperimentRepository) ListByStatus(ctx context.Context, statuses ...models.ExperimentStatus) ([]*models.Experiment, error) {
	return r.List(ctx, models.ExperimentFilter{Statuses: statuses})
}

// Ping verifies the store is reachable
func (r *PostgresExperimentRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close releases the connection pool
func (r *PostgresExperimentRepository) Close() {
	r.db.Close()
}

func encodeExperiment(exp *models.Experiment) (params, results, errorInfo []byte, err error) {
	parameters := exp.Parameters
	if parameters == nil {
		parameters = map[string]interface{}{}
	}
	if params, err = json.Marshal(parameters); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	if exp.Results != nil {
		if results, err = json.Marshal(exp.Results); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode results: %w", err)
		}
	}
	if exp.ErrorInfo != nil {
		if errorInfo, err = json.Marshal(exp.ErrorInfo); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode error info: %w", err)
		}
	}
	return params, results, errorInfo, nil
}

func scanExperiment(row pgx.Row) (*models.Experiment, error) {
	var (
		exp                        models.Experiment
		expType, status            string
		params, results, errorInfo []byte
	)

	err := row.Scan(
		&exp.ID, &exp.SessionID, &exp.ParentID, &exp.Name, &exp.Hypothesis, &expType, &params,
		&exp.Priority, &exp.TimeoutHours, &status, &results, &errorInfo,
		&exp.CreatedAt, &exp.StartedAt, &exp.CompletedAt, &exp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	exp.Type = models.ExperimentType(expType)
	exp.Status = models.ExperimentStatus(status)

	if len(params) > 0 {
		if err := json.Unmarshal(params, &exp.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	if len(results) > 0 {
		exp.Results = &models.ExperimentResults{}
		if err := json.Unmarshal(results, exp.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}
	}
	if len(errorInfo) > 0 {
		exp.ErrorInfo = &models.ErrorInfo{}
		if err := json.Unmarshal(errorInfo, exp.ErrorInfo); err != nil {
			return nil, fmt.Errorf("failed to decode error info: %w", err)
		}
	}

	return &exp, nil
}
