package engine

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

const budgetEpsilon = 1e-9

// BudgetNormalizer scales the stake vector down to the budget and rounds
// stakes to the configured increment while minimizing drift from budget.
type BudgetNormalizer struct {
	logger *logrus.Logger
}

// NewBudgetNormalizer creates a budget normalizer
func NewBudgetNormalizer(logger *logrus.Logger) *BudgetNormalizer {
	return &BudgetNormalizer{logger: logger}
}

// Normalize mutates stakes in place. If the total exceeds the budget, every
// stake is shrunk by the same factor, preserving relative allocation. With a
// positive rounding increment every stake is then rounded to the nearest
// multiple; when the portfolio had been scaled to exactly the budget the
// rounding residual is absorbed by the largest-stake ticket rather than
// spread around. The budget invariant sum(stake) <= budget + eps holds on
// exit for any input.
func (bn *BudgetNormalizer) Normalize(tickets []*models.Ticket, budget, roundTo float64) {
	total := stakeSum(tickets)
	if total <= 0 {
		return
	}

	scaled := false
	if total > budget {
		factor := budget / total
		for _, t := range tickets {
			if t.HasStake() {
				t.SetStake(t.StakeValue() * factor)
			}
		}
		scaled = true
		bn.logger.WithFields(logrus.Fields{
			"total_stake": total,
			"budget":      budget,
			"factor":      factor,
		}).Debug("Stakes scaled down to budget")
	}

	if roundTo > 0 {
		for _, t := range tickets {
			if !t.HasStake() {
				continue
			}
			rounded := math.Round(t.StakeValue()/roundTo) * roundTo
			if rounded < 0 {
				rounded = 0
			}
			t.SetStake(rounded)
		}

		if scaled {
			// The scale landed exactly on budget before rounding, so the
			// residual is pure rounding drift; park it on one ticket.
			residual := budget - stakeSum(tickets)
			if math.Abs(residual) > budgetEpsilon {
				if largest := largestStake(tickets); largest != nil {
					absorbed := largest.StakeValue() + residual
					if absorbed < 0 {
						absorbed = 0
					}
					largest.SetStake(absorbed)
				}
			}
		}
	}

	// Rounding up can overshoot even an unscaled portfolio; trim the
	// largest ticket back so the budget invariant always holds.
	if overshoot := stakeSum(tickets) - budget; overshoot > budgetEpsilon {
		if largest := largestStake(tickets); largest != nil {
			trimmed := largest.StakeValue() - overshoot
			if trimmed < 0 {
				trimmed = 0
			}
			largest.SetStake(trimmed)
		}
	}
}

// largestStake returns the ticket with the largest stake, the first among
// equals. Deterministic tie-break for residual placement.
func largestStake(tickets []*models.Ticket) *models.Ticket {
	var largest *models.Ticket
	for _, t := range tickets {
		if !t.HasStake() || t.StakeValue() == 0 {
			continue
		}
		if largest == nil || t.StakeValue() > largest.StakeValue() {
			largest = t
		}
	}
	return largest
}

func stakeSum(tickets []*models.Ticket) float64 {
	total := 0.0
	for _, t := range tickets {
		total += t.StakeValue()
	}
	return total
}
