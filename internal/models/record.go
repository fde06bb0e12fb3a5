package models

import (
	"time"

	"github.com/google/uuid"
)

// DecisionRecord is a persisted evaluation, one row in the decisions table.
type DecisionRecord struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Accepted      bool      `db:"accepted" json:"accepted"`
	Reasons       []string  `db:"reasons" json:"reasons"`
	Bankroll      float64   `db:"bankroll" json:"bankroll"`
	StakeTotal    float64   `db:"stake_total" json:"stake_total"`
	EVTotal       float64   `db:"ev_total" json:"ev_total"`
	VarianceTotal float64   `db:"variance_total" json:"variance_total"`
	RiskOfRuin    float64   `db:"risk_of_ruin" json:"risk_of_ruin"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`

	Stakes []*StakeRecord `json:"stakes,omitempty"`
}

// StakeRecord is one persisted ticket stake belonging to a decision.
type StakeRecord struct {
	DecisionID  uuid.UUID `db:"decision_id" json:"decision_id"`
	TicketID    string    `db:"ticket_id" json:"ticket_id"`
	Kind        string    `db:"kind" json:"kind"`
	Odds        float64   `db:"odds" json:"odds"`
	Probability float64   `db:"probability" json:"probability"`
	Stake       float64   `db:"stake" json:"stake"`
	EV          float64   `db:"ev" json:"ev"`
	Variance    float64   `db:"variance" json:"variance"`
	ROI         float64   `db:"roi" json:"roi"`
	CLV         *float64  `db:"clv" json:"clv,omitempty"`
}
