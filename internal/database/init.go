package database

import (
	"context"
	"fmt"

	"github.com/yourusername/stakecraft/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id UUID PRIMARY KEY,
	accepted BOOLEAN NOT NULL,
	reasons TEXT[] NOT NULL DEFAULT '{}',
	bankroll DOUBLE PRECISION NOT NULL,
	stake_total DOUBLE PRECISION NOT NULL,
	ev_total DOUBLE PRECISION NOT NULL,
	variance_total DOUBLE PRECISION NOT NULL,
	risk_of_ruin DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_stakes (
	decision_id UUID NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
	ticket_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	odds DOUBLE PRECISION NOT NULL,
	probability DOUBLE PRECISION NOT NULL,
	stake DOUBLE PRECISION NOT NULL,
	ev DOUBLE PRECISION NOT NULL,
	variance DOUBLE PRECISION NOT NULL,
	roi DOUBLE PRECISION NOT NULL,
	clv DOUBLE PRECISION,
	PRIMARY KEY (decision_id, ticket_id)
);

CREATE TABLE IF NOT EXISTS leg_outcomes (
	id BIGSERIAL PRIMARY KEY,
	legs TEXT[] NOT NULL,
	won BOOLEAN NOT NULL,
	settled_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leg_outcomes_settled_at ON leg_outcomes (settled_at DESC);
`

// Initialize creates a database connection pool and ensures the schema exists
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if _, err := db.pool.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}
