package engine

import (
	"fmt"

	"github.com/yourusername/stakecraft/internal/models"
)

// DecisionGate evaluates the computed portfolio metrics against the
// configured gates. Pure function over already-computed metrics: no side
// effects, idempotent, and every violated gate is reported rather than
// short-circuiting on the first.
type DecisionGate struct{}

// NewDecisionGate creates a decision gate
func NewDecisionGate() *DecisionGate {
	return &DecisionGate{}
}

// Decide produces the accept/abstain verdict. hasCombos enables the
// combined-payout gate for portfolios containing exotic bets.
func (dg *DecisionGate) Decide(metrics models.PortfolioMetrics, th models.Thresholds, bankroll float64, hasCombos bool) models.Decision {
	var reasons []string

	if metrics.EVRatio < th.EVRatioMin {
		reasons = append(reasons, fmt.Sprintf("ev_ratio %.4f below minimum %.4f", metrics.EVRatio, th.EVRatioMin))
	}

	if metrics.ROITotal < th.ROIMin {
		reasons = append(reasons, fmt.Sprintf("roi %.4f below minimum %.4f", metrics.ROITotal, th.ROIMin))
	}

	if hasCombos && metrics.ExpectedCombinedPayout <= th.MinCombinedPayout {
		reasons = append(reasons, fmt.Sprintf("expected_combined_payout %.2f not above minimum %.2f", metrics.ExpectedCombinedPayout, th.MinCombinedPayout))
	}

	if th.VarianceCap != nil {
		varianceCap := *th.VarianceCap * bankroll * bankroll
		if metrics.VarianceTotal > varianceCap {
			reasons = append(reasons, fmt.Sprintf("variance %.2f exceeds cap %.2f", metrics.VarianceTotal, varianceCap))
		}
	}

	if th.RiskOfRuinMax != nil && metrics.RiskOfRuin > *th.RiskOfRuinMax {
		reasons = append(reasons, fmt.Sprintf("risk_of_ruin %.4f exceeds maximum %.4f", metrics.RiskOfRuin, *th.RiskOfRuinMax))
	}

	return models.Decision{
		Accepted: len(reasons) == 0,
		Reasons:  reasons,
	}
}
