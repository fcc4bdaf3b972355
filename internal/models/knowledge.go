package models

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeType categorizes a knowledge base entry
type KnowledgeType string

const (
	KnowledgeTypeInsight        KnowledgeType = "insight"
	KnowledgeTypeWarning        KnowledgeType = "warning"
	KnowledgeTypeRecommendation KnowledgeType = "recommendation"
	KnowledgeTypeFailure        KnowledgeType = "failure"
)

// KnowledgeEntry is a finding distilled from an analyzed experiment
type KnowledgeEntry struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	ExperimentID   uuid.UUID      `db:"experiment_id" json:"experiment_id"`
	ExperimentType ExperimentType `db:"experiment_type" json:"experiment_type"`
	Type           KnowledgeType  `db:"entry_type" json:"entry_type"`
	Content        string         `db:"content" json:"content"`
	FitnessScore   float64        `db:"fitness_score" json:"fitness_score"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
