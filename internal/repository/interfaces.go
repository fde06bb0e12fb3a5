// Package repository provides PostgreSQL persistence for decisions and
// settled outcomes.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/stakecraft/internal/calibration"
	"github.com/yourusername/stakecraft/internal/models"
)

// DecisionRepository defines the interface for decision persistence
type DecisionRepository interface {
	Save(ctx context.Context, portfolio *models.Portfolio, result *models.EvaluationResult) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionRecord, error)
	GetRecent(ctx context.Context, limit int) ([]*models.DecisionRecord, error)
}

// OutcomeRepository defines the interface for settled outcome data access.
// It also feeds the calibration store.
type OutcomeRepository interface {
	calibration.OutcomeSource

	Insert(ctx context.Context, outcome calibration.LegOutcome) error
	InsertBatch(ctx context.Context, outcomes []calibration.LegOutcome) error
}
