package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yourusername/research-lab/internal/database"
	"github.com/yourusername/research-lab/internal/models"
)

// setupTestDB starts a PostgreSQL container and applies the embedded schema.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Integration test - requires docker")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("research_lab"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewDBFromDSN(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, database.RunMigrations(ctx, db))
	// Migrations are idempotent.
	require.NoError(t, database.RunMigrations(ctx, db))
	return db
}

func TestPostgresExperimentRepository(t *testing.T) {
	db := setupTestDB(t)
	repos, err := NewRepositories(db)
	require.NoError(t, err)
	repo := repos.Experiment

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := time.Now().UTC().Truncate(time.Microsecond)
	exp := newExperiment("breakout", models.ExperimentStatusPending, created)
	session := uuid.New()
	exp.SessionID = &session

	require.NoError(t, repo.Create(ctx, exp))
	assert.ErrorIs(t, repo.Create(ctx, exp), models.ErrDuplicateKey)

	got, err := repo.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.Name, got.Name)
	assert.Equal(t, session, *got.SessionID)
	assert.Nil(t, got.ParentID)
	assert.EqualValues(t, 20, got.Parameters["lookback"])
	assert.Nil(t, got.Results)
	assert.Nil(t, got.ErrorInfo)

	completed := created.Add(time.Minute)
	got.Status = models.ExperimentStatusFailed
	got.CompletedAt = &completed
	got.ErrorInfo = &models.ErrorInfo{
		Kind:    models.ErrorKindSystemInterruption,
		Message: "experiment interrupted by system restart",
	}
	require.NoError(t, repo.Update(ctx, got))

	failed, err := repo.ListByStatus(ctx, models.ExperimentStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].ErrorInfo)
	assert.Equal(t, models.ErrorKindSystemInterruption, failed[0].ErrorInfo.Kind)
	assert.True(t, completed.Equal(*failed[0].CompletedAt))

	bySession, err := repo.List(ctx, models.ExperimentFilter{SessionID: &session, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, bySession, 1)

	child := newExperiment("breakout (refined)", models.ExperimentStatusPending, created)
	child.ParentID = &exp.ID
	require.NoError(t, repo.Create(ctx, child))
	byParent, err := repo.List(ctx, models.ExperimentFilter{ParentID: &exp.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, byParent, 1)
	assert.Equal(t, child.ID, byParent[0].ID)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, repo.Ping(ctx))
}

func TestPostgresKnowledgeRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	exp := newExperiment("source", models.ExperimentStatusCompleted, time.Now().UTC())
	require.NoError(t, NewPostgresExperimentRepository(db).Create(ctx, exp))

	repo := NewPostgresKnowledgeRepository(db)
	now := time.Now().UTC()
	require.NoError(t, repo.Insert(ctx, []*models.KnowledgeEntry{
		{ID: uuid.New(), ExperimentID: exp.ID, ExperimentType: exp.Type, Type: models.KnowledgeTypeInsight, Content: "a", FitnessScore: 1.0, CreatedAt: now},
		{ID: uuid.New(), ExperimentID: exp.ID, ExperimentType: exp.Type, Type: models.KnowledgeTypeInsight, Content: "b", FitnessScore: 2.0, CreatedAt: now},
	}))

	top, err := repo.TopByFitness(ctx, models.KnowledgeTypeInsight, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "b", top[0].Content)
}
