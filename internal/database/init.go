package database

import (
	"context"
	"fmt"

	"github.com/yourusername/research-lab/internal/config"
)

// Initialize connects to PostgreSQL and applies the embedded schema
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return db, nil
}
