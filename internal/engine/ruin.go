package engine

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

const (
	// Iteration bound for the enforcement fixed-point search. Rounding makes
	// each pass non-linear, so the closed-form factor is reapplied until the
	// target holds or the bound is hit.
	defaultMaxEnforceIterations = 48
	rorEpsilon                  = 1e-9
)

// PortfolioState is the aggregate view the enforcer iterates on
type PortfolioState struct {
	EV         float64
	Variance   float64
	StakeTotal float64
}

// RecomputeFunc re-derives the aggregate state from current ticket stakes.
// Recomputed rather than scaled analytically because rounding is non-linear.
type RecomputeFunc func() PortfolioState

// RiskOfRuin computes the portfolio ruin probability from aggregate EV,
// variance and bankroll using the Brownian-motion-with-drift approximation
// exp(-2*EV*bankroll/Variance). Non-positive edge makes ruin near-certain;
// positive edge with no variance makes it impossible.
func RiskOfRuin(ev, variance, bankroll float64) float64 {
	if ev <= 0 {
		return 1.0
	}
	if variance <= 0 {
		return 0.0
	}
	ror := math.Exp(-2.0 * ev * bankroll / variance)
	return clamp(ror, 0, 1)
}

// RiskOfRuinEnforcer shrinks the stake vector until the portfolio ruin
// probability satisfies the configured target.
type RiskOfRuinEnforcer struct {
	normalizer    *BudgetNormalizer
	logger        *logrus.Logger
	maxIterations int
}

// NewRiskOfRuinEnforcer creates an enforcer sharing the pipeline's normalizer
func NewRiskOfRuinEnforcer(normalizer *BudgetNormalizer, logger *logrus.Logger) *RiskOfRuinEnforcer {
	return &RiskOfRuinEnforcer{
		normalizer:    normalizer,
		logger:        logger,
		maxIterations: defaultMaxEnforceIterations,
	}
}

// Enforce drives the portfolio risk-of-ruin to the target by repeatedly
// applying the closed-form shrink factor, re-rounding and recomputing. EV
// scales linearly and variance quadratically with stakes, so the factor that
// lands exactly on target is s = -2*EV*bankroll / (Variance * ln(target)).
// Non-convergence degrades to best effort; a portfolio that can never reach
// a positive-EV state is emptied rather than looped on forever.
func (e *RiskOfRuinEnforcer) Enforce(tickets []*models.Ticket, bankroll, target, roundTo, minStake float64, recompute RecomputeFunc) models.EnforcerInfo {
	state := recompute()
	ror := RiskOfRuin(state.EV, state.Variance, bankroll)

	info := models.EnforcerInfo{
		InitialROR:      ror,
		InitialEV:       state.EV,
		InitialVariance: state.Variance,
		InitialStake:    state.StakeTotal,
		ScaleApplied:    1.0,
	}

	iterations := 0
	for ror > target+rorEpsilon && iterations < e.maxIterations {
		if state.EV <= 0 || state.Variance <= 0 {
			// No shrink factor exists for non-positive edge; abandon the
			// portfolio instead of iterating on it.
			e.emptyPortfolio(tickets)
			state = recompute()
			ror = RiskOfRuin(state.EV, state.Variance, bankroll)
			iterations++
			break
		}

		s := -2.0 * state.EV * bankroll / (state.Variance * math.Log(target))
		if s >= 1.0-rorEpsilon {
			// Factor would not shrink anything; rounding noise, stop here
			break
		}
		if s <= 0 {
			e.emptyPortfolio(tickets)
			state = recompute()
			ror = RiskOfRuin(state.EV, state.Variance, bankroll)
			iterations++
			break
		}

		for _, t := range tickets {
			if !t.HasStake() {
				continue
			}
			scaled := t.StakeValue() * s
			if scaled < minStake {
				scaled = 0
			}
			t.SetStake(scaled)
		}
		e.normalizer.Normalize(tickets, bankroll, roundTo)

		info.ScaleApplied *= s
		state = recompute()
		ror = RiskOfRuin(state.EV, state.Variance, bankroll)
		iterations++
	}

	info.FinalROR = ror
	info.FinalEV = state.EV
	info.FinalVariance = state.Variance
	info.FinalStake = state.StakeTotal
	info.Iterations = iterations
	info.Converged = ror <= target+rorEpsilon

	if !info.Converged {
		e.logger.WithError(models.ErrConvergenceExhausted).WithFields(logrus.Fields{
			"iterations": iterations,
			"final_ror":  ror,
			"target":     target,
		}).Warn("Returning best achieved risk-of-ruin state")
	} else if iterations > 0 {
		e.logger.WithFields(logrus.Fields{
			"iterations":  iterations,
			"initial_ror": info.InitialROR,
			"final_ror":   ror,
			"scale":       info.ScaleApplied,
		}).Info("Risk-of-ruin target enforced")
	}

	return info
}

func (e *RiskOfRuinEnforcer) emptyPortfolio(tickets []*models.Ticket) {
	for _, t := range tickets {
		if t.HasStake() {
			t.SetStake(0)
		}
	}
	e.logger.Warn("No positive-EV state reachable, portfolio emptied")
}
