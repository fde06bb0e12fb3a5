package engine

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

// Correlation strengths by kind of shared exposure. Discrete lookup, not
// learned.
const (
	rhoSameRunner = 0.85
	rhoSharedLeg  = 0.50
	rhoSameRace   = 0.20
)

// PairCovariance records the covariance contribution of one qualifying
// ticket pair, for observability.
type PairCovariance struct {
	TicketI    string  `json:"ticket_i"`
	TicketJ    string  `json:"ticket_j"`
	Rho        float64 `json:"rho"`
	JointProb  float64 `json:"joint_prob"`
	Covariance float64 `json:"covariance"`
}

// CovarianceEstimator adjusts portfolio variance for pairs of tickets that
// share exposure (same runner, overlapping legs, or same race). It never
// mutates stakes; the only output is the variance metric used downstream.
type CovarianceEstimator struct {
	resolver *ProbabilityResolver
	logger   *logrus.Logger
}

// NewCovarianceEstimator creates a covariance estimator. The resolver is
// used for simulated joint probabilities of leg unions and may share its
// cache with ticket resolution.
func NewCovarianceEstimator(resolver *ProbabilityResolver, logger *logrus.Logger) *CovarianceEstimator {
	return &CovarianceEstimator{resolver: resolver, logger: logger}
}

// Adjust returns the total covariance adjustment to portfolio variance
// (2 * sum of pairwise covariances) plus per-pair details. Unrelated pairs
// contribute nothing and are skipped.
func (ce *CovarianceEstimator) Adjust(ctx context.Context, tickets []*models.Ticket, probs map[string]float64, evs map[string]float64) (float64, []PairCovariance) {
	var pairs []PairCovariance
	adjustment := 0.0

	for i := 0; i < len(tickets); i++ {
		for j := i + 1; j < len(tickets); j++ {
			ti, tj := tickets[i], tickets[j]
			if ti.StakeValue() == 0 || tj.StakeValue() == 0 {
				continue
			}

			rho := exposureCorrelation(ti, tj)
			if rho == 0 {
				continue
			}

			pi, pj := probs[ti.ID], probs[tj.ID]
			if pi <= 0 || pj <= 0 {
				continue
			}

			joint := ce.jointProbability(ctx, ti, tj, pi, pj, rho)
			cov := pairCovariance(ti, tj, pi, pj, joint, evs[ti.ID], evs[tj.ID])

			pairs = append(pairs, PairCovariance{
				TicketI:    ti.ID,
				TicketJ:    tj.ID,
				Rho:        rho,
				JointProb:  joint,
				Covariance: cov,
			})
			adjustment += 2.0 * cov
		}
	}

	if len(pairs) > 0 {
		ce.logger.WithFields(logrus.Fields{
			"qualifying_pairs":    len(pairs),
			"variance_adjustment": adjustment,
		}).Debug("Covariance adjustment computed")
	}

	return adjustment, pairs
}

// exposureCorrelation returns the correlation strength implied by the kind
// of shared exposure between two tickets, or 0 when they are unrelated.
func exposureCorrelation(a, b *models.Ticket) float64 {
	if a.RunnerID != "" && a.RunnerID == b.RunnerID {
		return rhoSameRunner
	}
	if sharesLeg(a.Legs, b.Legs) {
		return rhoSharedLeg
	}
	if a.RaceID != "" && a.RaceID == b.RaceID {
		return rhoSameRace
	}
	return 0
}

func sharesLeg(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, leg := range a {
		set[leg] = struct{}{}
	}
	for _, leg := range b {
		if _, ok := set[leg]; ok {
			return true
		}
	}
	return false
}

// jointProbability estimates P(both win). When both tickets carry legs and a
// simulate function is available, the union of legs is simulated directly;
// otherwise a correlated-Bernoulli approximation is used. Either way the
// result is clamped into the Frechet bounds and never falls below the
// independence product.
func (ce *CovarianceEstimator) jointProbability(ctx context.Context, ti, tj *models.Ticket, pi, pj, rho float64) float64 {
	lo := math.Max(0, pi+pj-1)
	hi := math.Min(pi, pj)

	if len(ti.Legs) > 0 && len(tj.Legs) > 0 {
		if joint, err := ce.resolver.Joint(ctx, legUnion(ti.Legs, tj.Legs)); err == nil {
			return clamp(math.Max(joint, pi*pj), lo, hi)
		}
	}

	joint := pi*pj + rho*math.Sqrt(pi*(1-pi)*pj*(1-pj))
	return clamp(math.Max(joint, pi*pj), lo, hi)
}

func legUnion(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, leg := range a {
		if _, ok := seen[leg]; !ok {
			seen[leg] = struct{}{}
			union = append(union, leg)
		}
	}
	for _, leg := range b {
		if _, ok := seen[leg]; !ok {
			seen[leg] = struct{}{}
			union = append(union, leg)
		}
	}
	return union
}

// pairCovariance converts a joint win probability into the covariance of the
// two tickets' profit random variables, using the four joint-outcome
// probabilities and each ticket's marginal EV.
func pairCovariance(ti, tj *models.Ticket, pi, pj, joint, evi, evj float64) float64 {
	si, sj := ti.StakeValue(), tj.StakeValue()
	wi := si * (ti.Odds - 1.0)
	wj := sj * (tj.Odds - 1.0)

	p11 := joint
	p10 := math.Max(0, pi-joint)
	p01 := math.Max(0, pj-joint)
	p00 := math.Max(0, 1-pi-pj+joint)

	expectedProduct := p11*wi*wj + p10*wi*(-sj) + p01*(-si)*wj + p00*si*sj
	return expectedProduct - evi*evj
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
