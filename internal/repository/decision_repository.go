package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/stakecraft/internal/database"
	"github.com/yourusername/stakecraft/internal/metrics"
	"github.com/yourusername/stakecraft/internal/models"
)

// PostgresDecisionRepository implements DecisionRepository for PostgreSQL
type PostgresDecisionRepository struct {
	db *database.DB
}

// NewPostgresDecisionRepository creates a new decision repository
func NewPostgresDecisionRepository(db *database.DB) DecisionRepository {
	return &PostgresDecisionRepository{db: db}
}

// Save persists a decision and its per-ticket stakes in one transaction. The
// decision ID and timestamp are stamped here so that evaluation itself stays
// idempotent.
func (r *PostgresDecisionRepository) Save(ctx context.Context, portfolio *models.Portfolio, result *models.EvaluationResult) (uuid.UUID, error) {
	id := uuid.New()
	createdAt := time.Now().UTC()

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO decisions (id, accepted, reasons, bankroll, stake_total, ev_total, variance_total, risk_of_ruin, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			id, result.Decision.Accepted, result.Decision.Reasons, portfolio.Bankroll,
			result.Metrics.StakeTotal, result.Metrics.EVTotal, result.Metrics.VarianceTotal,
			result.Metrics.RiskOfRuin, createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert decision: %w", err)
		}

		for _, t := range portfolio.Tickets {
			tm := result.TicketMetrics[t.ID]
			if tm == nil {
				continue
			}
			var clv *float64
			if t.ClosingOdds != nil {
				v := t.CLV()
				clv = &v
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO decision_stakes (decision_id, ticket_id, kind, odds, probability, stake, ev, variance, roi, clv)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				id, t.ID, string(t.Kind), t.Odds, tm.Probability, t.StakeValue(),
				tm.EV, tm.Variance, tm.ROI, clv,
			)
			if err != nil {
				return fmt.Errorf("failed to insert stake for ticket %s: %w", t.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	result.Decision.ID = id
	result.Decision.CreatedAt = createdAt
	metrics.DecisionsPersistedTotal.Inc()

	return id, nil
}

// GetByID retrieves a decision and its stakes by ID
func (r *PostgresDecisionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionRecord, error) {
	record := &models.DecisionRecord{}
	err := r.db.QueryRow(ctx, `
		SELECT id, accepted, reasons, bankroll, stake_total, ev_total, variance_total, risk_of_ruin, created_at
		FROM decisions WHERE id = $1
	`, id).Scan(
		&record.ID, &record.Accepted, &record.Reasons, &record.Bankroll,
		&record.StakeTotal, &record.EVTotal, &record.VarianceTotal,
		&record.RiskOfRuin, &record.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}

	stakes, err := r.stakesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Stakes = stakes

	return record, nil
}

// GetRecent retrieves the most recent decisions without their stakes
func (r *PostgresDecisionRepository) GetRecent(ctx context.Context, limit int) ([]*models.DecisionRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, accepted, reasons, bankroll, stake_total, ev_total, variance_total, risk_of_ruin, created_at
		FROM decisions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var records []*models.DecisionRecord
	for rows.Next() {
		record := &models.DecisionRecord{}
		err := rows.Scan(
			&record.ID, &record.Accepted, &record.Reasons, &record.Bankroll,
			&record.StakeTotal, &record.EVTotal, &record.VarianceTotal,
			&record.RiskOfRuin, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *PostgresDecisionRepository) stakesFor(ctx context.Context, decisionID uuid.UUID) ([]*models.StakeRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT decision_id, ticket_id, kind, odds, probability, stake, ev, variance, roi, clv
		FROM decision_stakes
		WHERE decision_id = $1
		ORDER BY ticket_id
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stakes: %w", err)
	}
	defer rows.Close()

	var stakes []*models.StakeRecord
	for rows.Next() {
		stake := &models.StakeRecord{}
		err := rows.Scan(
			&stake.DecisionID, &stake.TicketID, &stake.Kind, &stake.Odds,
			&stake.Probability, &stake.Stake, &stake.EV, &stake.Variance,
			&stake.ROI, &stake.CLV,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stake: %w", err)
		}
		stakes = append(stakes, stake)
	}

	return stakes, rows.Err()
}
