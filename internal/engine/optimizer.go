package engine

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

// LogUtilityOptimizer is an alternate staking strategy behind the Staker
// interface: instead of sizing each ticket independently, it searches for the
// stake vector maximizing expected log bankroll growth subject to the budget
// cap, via projected gradient ascent. Per-ticket full Kelly is the
// unconstrained optimum, so the result converges to fractional Kelly when the
// cap is not binding.
type LogUtilityOptimizer struct {
	iterations int
	stepSize   float64
	logger     *logrus.Logger
}

// NewLogUtilityOptimizer creates the optimizing staking strategy
func NewLogUtilityOptimizer(logger *logrus.Logger) *LogUtilityOptimizer {
	return &LogUtilityOptimizer{
		iterations: 500,
		stepSize:   0.05,
		logger:     logger,
	}
}

// Allocate assigns stakes in place by maximizing
// sum_i p_i*log(1 + x_i*(o_i-1)/B) + (1-p_i)*log(1 - x_i/B)
// over x >= 0 with sum(x) <= B * kelly_cap.
func (lo *LogUtilityOptimizer) Allocate(tickets []*models.Ticket, probs map[string]float64, bankroll float64, th models.Thresholds) error {
	budget := bankroll * th.KellyCap

	// Candidate set: valid odds and positive resolved probability
	var active []*models.Ticket
	for _, t := range tickets {
		if t.HasValidOdds() && probs[t.ID] > 0 {
			active = append(active, t)
		} else {
			t.SetStake(0)
		}
	}
	if len(active) == 0 {
		return nil
	}

	// Warm start from fractional Kelly
	stakes := make([]float64, len(active))
	for i, t := range active {
		capped, err := CappedStake(probs[t.ID], t.Odds, bankroll, th.KellyCap)
		if err != nil {
			return err
		}
		stakes[i] = capped
	}
	projectBudget(stakes, budget)

	grad := make([]float64, len(active))
	for iter := 0; iter < lo.iterations; iter++ {
		for i, t := range active {
			p := probs[t.ID]
			b := t.Odds - 1.0
			winTerm := p * b / (bankroll + stakes[i]*b)
			loseTerm := (1 - p) / (bankroll - stakes[i])
			grad[i] = winTerm - loseTerm
		}

		moved := 0.0
		for i := range stakes {
			next := stakes[i] + lo.stepSize*bankroll*grad[i]
			if next < 0 {
				next = 0
			}
			// Keep strictly inside the log domain
			if next > bankroll*0.99 {
				next = bankroll * 0.99
			}
			moved += math.Abs(next - stakes[i])
			stakes[i] = next
		}
		projectBudget(stakes, budget)

		if moved < 1e-10*bankroll {
			break
		}
	}

	for i, t := range active {
		stake := stakes[i]
		if t.HasStake() && t.StakeValue() < stake {
			stake = t.StakeValue()
		}
		if stake < th.MinStake {
			stake = 0
		}
		t.SetStake(stake)
	}

	lo.logger.WithFields(logrus.Fields{
		"candidates": len(active),
		"budget":     budget,
	}).Debug("Log-utility allocation complete")

	return nil
}

// projectBudget scales the stake vector onto the budget simplex
func projectBudget(stakes []float64, budget float64) {
	total := 0.0
	for _, s := range stakes {
		total += s
	}
	if total <= budget || total == 0 {
		return
	}
	factor := budget / total
	for i := range stakes {
		stakes[i] *= factor
	}
}
