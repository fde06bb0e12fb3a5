package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TicketMetrics holds derived per-ticket quantities. Kept separate from the
// Ticket input fields so the staking contract stays auditable.
type TicketMetrics struct {
	TicketID    string  `db:"ticket_id" json:"ticket_id"`
	Probability float64 `db:"probability" json:"probability"`
	EV          float64 `db:"ev" json:"ev"`
	Variance    float64 `db:"variance" json:"variance"`
	ROI         float64 `db:"roi" json:"roi"`
	CLV         float64 `db:"clv" json:"clv"`
}

// PortfolioMetrics aggregates the portfolio-level quantities the decision
// gate evaluates. VarianceNaive is the independent sum of per-ticket
// variances; VarianceTotal includes the pairwise covariance adjustment.
type PortfolioMetrics struct {
	StakeTotal             float64 `db:"stake_total" json:"stake_total"`
	EVTotal                float64 `db:"ev_total" json:"ev_total"`
	VarianceNaive          float64 `db:"variance_naive" json:"variance_naive"`
	VarianceTotal          float64 `db:"variance_total" json:"variance_total"`
	ROITotal               float64 `db:"roi_total" json:"roi_total"`
	EVRatio                float64 `db:"ev_ratio" json:"ev_ratio"`
	RiskOfRuin             float64 `db:"risk_of_ruin" json:"risk_of_ruin"`
	ExpectedCombinedPayout float64 `db:"expected_combined_payout" json:"expected_combined_payout"`
	ActiveTickets          int     `db:"active_tickets" json:"active_tickets"`
}

// Decision is the final accept/abstain verdict for a staked portfolio.
// Reasons itemizes every violated gate; accepted iff none.
type Decision struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Accepted  bool      `db:"accepted" json:"accepted"`
	Reasons   []string  `db:"reasons" json:"reasons"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnforcerInfo records what the risk-of-ruin enforcement loop did.
// Observability only, never control flow.
type EnforcerInfo struct {
	InitialROR      float64 `json:"initial_ror"`
	FinalROR        float64 `json:"final_ror"`
	ScaleApplied    float64 `json:"scale_applied"`
	Iterations      int     `json:"iterations"`
	InitialEV       float64 `json:"initial_ev"`
	FinalEV         float64 `json:"final_ev"`
	InitialVariance float64 `json:"initial_variance"`
	FinalVariance   float64 `json:"final_variance"`
	InitialStake    float64 `json:"initial_stake"`
	FinalStake      float64 `json:"final_stake"`
	Converged       bool    `json:"converged"`
}

// EvaluationResult bundles everything a run produces for reporting and
// persistence: the decision, portfolio metrics, enforcement info and the
// per-ticket metrics keyed by ticket ID.
type EvaluationResult struct {
	Decision      Decision                  `json:"decision"`
	Metrics       PortfolioMetrics          `json:"metrics"`
	Enforcer      EnforcerInfo              `json:"enforcer"`
	TicketMetrics map[string]*TicketMetrics `json:"ticket_metrics"`
}

// ToJSON exports the evaluation result for report writers and the stream
func (r *EvaluationResult) ToJSON() string {
	data, _ := json.Marshal(r)
	return string(data)
}
