package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/stakecraft/internal/calibration"
	"github.com/yourusername/stakecraft/internal/database"
)

// PostgresOutcomeRepository implements OutcomeRepository for PostgreSQL
type PostgresOutcomeRepository struct {
	db *database.DB
}

// NewPostgresOutcomeRepository creates a new outcome repository
func NewPostgresOutcomeRepository(db *database.DB) OutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

// Insert records one settled outcome
func (r *PostgresOutcomeRepository) Insert(ctx context.Context, outcome calibration.LegOutcome) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO leg_outcomes (legs, won) VALUES ($1, $2)
	`, outcome.Legs, outcome.Won)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// InsertBatch records settled outcomes in one transaction
func (r *PostgresOutcomeRepository) InsertBatch(ctx context.Context, outcomes []calibration.LegOutcome) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, outcome := range outcomes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO leg_outcomes (legs, won) VALUES ($1, $2)
			`, outcome.Legs, outcome.Won); err != nil {
				return fmt.Errorf("failed to insert outcome: %w", err)
			}
		}
		return nil
	})
}

// LegOutcomes returns all settled outcomes, feeding calibration refreshes
func (r *PostgresOutcomeRepository) LegOutcomes(ctx context.Context) ([]calibration.LegOutcome, error) {
	rows, err := r.db.Query(ctx, `
		SELECT legs, won FROM leg_outcomes ORDER BY settled_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []calibration.LegOutcome
	for rows.Next() {
		var outcome calibration.LegOutcome
		if err := rows.Scan(&outcome.Legs, &outcome.Won); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rows.Err()
}
