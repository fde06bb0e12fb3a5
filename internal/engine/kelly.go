package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

// Staker assigns initial stakes to tickets given resolved probabilities and
// the bankroll. KellyStaker is the default; LogUtilityOptimizer is an
// alternate strategy behind the same interface.
type Staker interface {
	Allocate(tickets []*models.Ticket, probs map[string]float64, bankroll float64, th models.Thresholds) error
}

// KellyFraction computes the full-Kelly fraction of bankroll for a single
// bet: f = (p*odds - 1) / (odds - 1), floored at zero. Negative-edge bets
// size to zero, never short.
func KellyFraction(p, odds float64) (float64, error) {
	if p <= 0 || p >= 1 {
		return 0, fmt.Errorf("probability %f: %w", p, models.ErrInvalidProbability)
	}
	if odds <= 1.0 {
		return 0, fmt.Errorf("odds %f: %w", odds, models.ErrInvalidOdds)
	}

	f := (p*odds - 1.0) / (odds - 1.0)
	return math.Max(0, f), nil
}

// CappedStake returns the fractional-Kelly stake for a single bet:
// kelly fraction scaled by bankroll and the fractional cap.
func CappedStake(p, odds, bankroll, kellyCap float64) (float64, error) {
	f, err := KellyFraction(p, odds)
	if err != nil {
		return 0, err
	}
	return f * bankroll * kellyCap, nil
}

// KellyStaker sizes every ticket independently with fractional Kelly.
// Declared stakes are clamped to the risk cap; stakes below the dust floor
// are zeroed.
type KellyStaker struct {
	logger *logrus.Logger
}

// NewKellyStaker creates the default staking strategy
func NewKellyStaker(logger *logrus.Logger) *KellyStaker {
	return &KellyStaker{logger: logger}
}

// Allocate assigns initial stakes in place. Tickets with invalid odds or
// zero resolved probability are zeroed rather than failing the portfolio.
func (ks *KellyStaker) Allocate(tickets []*models.Ticket, probs map[string]float64, bankroll float64, th models.Thresholds) error {
	for _, t := range tickets {
		p := probs[t.ID]

		if !t.HasValidOdds() || p <= 0 {
			t.SetStake(0)
			continue
		}

		capped, err := CappedStake(p, t.Odds, bankroll, th.KellyCap)
		if err != nil {
			return fmt.Errorf("ticket %s: %w", t.ID, err)
		}

		stake := capped
		if t.HasStake() && t.StakeValue() < capped {
			// User-declared stakes may be smaller, never larger
			stake = t.StakeValue()
		}

		if stake < th.MinStake {
			ks.logger.WithFields(logrus.Fields{
				"ticket_id": t.ID,
				"stake":     stake,
				"min_stake": th.MinStake,
			}).Debug("Stake below minimum, ticket zeroed")
			stake = 0
		}

		t.SetStake(stake)
	}

	return nil
}
