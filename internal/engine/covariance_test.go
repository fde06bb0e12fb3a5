package engine

import (
	"context"
	"math"
	"testing"

	"github.com/yourusername/stakecraft/internal/models"
)

func TestExposureCorrelationSelection(t *testing.T) {
	tests := []struct {
		name     string
		a, b     *models.Ticket
		expected float64
	}{
		{
			name:     "same runner",
			a:        &models.Ticket{RunnerID: "r1", RaceID: "race1"},
			b:        &models.Ticket{RunnerID: "r1", RaceID: "race2"},
			expected: rhoSameRunner,
		},
		{
			name:     "shared leg",
			a:        &models.Ticket{Legs: []string{"x", "y"}},
			b:        &models.Ticket{Legs: []string{"y", "z"}},
			expected: rhoSharedLeg,
		},
		{
			name:     "same race only",
			a:        &models.Ticket{RunnerID: "r1", RaceID: "race1"},
			b:        &models.Ticket{RunnerID: "r2", RaceID: "race1"},
			expected: rhoSameRace,
		},
		{
			name:     "runner beats shared leg",
			a:        &models.Ticket{RunnerID: "r1", Legs: []string{"x"}},
			b:        &models.Ticket{RunnerID: "r1", Legs: []string{"x"}},
			expected: rhoSameRunner,
		},
		{
			name:     "unrelated",
			a:        &models.Ticket{RunnerID: "r1", RaceID: "race1", Legs: []string{"x"}},
			b:        &models.Ticket{RunnerID: "r2", RaceID: "race2", Legs: []string{"y"}},
			expected: 0,
		},
		{
			name:     "empty identifiers never match",
			a:        &models.Ticket{},
			b:        &models.Ticket{},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exposureCorrelation(tt.a, tt.b); got != tt.expected {
				t.Fatalf("expected rho %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestAdjustSkipsUnrelatedAndZeroStake(t *testing.T) {
	ce := NewCovarianceEstimator(NewProbabilityResolver(nil, DefaultResolverConfig(), testLogger()), testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, RaceID: "race1", Stake: fp(10)},
		{ID: "b", Odds: 3.0, RaceID: "race2", Stake: fp(5)},
		{ID: "c", Odds: 3.0, RaceID: "race1", Stake: fp(0)},
	}
	probs := map[string]float64{"a": 0.5, "b": 0.3, "c": 0.3}
	evs := map[string]float64{"a": 0, "b": -0.5, "c": 0}

	adjustment, pairs := ce.Adjust(context.Background(), tickets, probs, evs)
	if adjustment != 0 {
		t.Fatalf("expected zero adjustment, got %f", adjustment)
	}
	if len(pairs) != 0 {
		t.Fatalf("expected no qualifying pairs, got %d", len(pairs))
	}
}

func TestAdjustSameRunnerPair(t *testing.T) {
	ce := NewCovarianceEstimator(NewProbabilityResolver(nil, DefaultResolverConfig(), testLogger()), testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, RunnerID: "r1", Stake: fp(10)},
		{ID: "b", Odds: 3.0, RunnerID: "r1", Stake: fp(5)},
	}
	probs := map[string]float64{"a": 0.5, "b": 0.3}
	// evi = 0.5*10 - 0.5*10 = 0; evj = 0.3*10 - 0.7*5 = -0.5
	evs := map[string]float64{"a": 0, "b": -0.5}

	adjustment, pairs := ce.Adjust(context.Background(), tickets, probs, evs)

	if len(pairs) != 1 {
		t.Fatalf("expected one qualifying pair, got %d", len(pairs))
	}
	pair := pairs[0]
	if pair.Rho != rhoSameRunner {
		t.Fatalf("expected rho %f, got %f", rhoSameRunner, pair.Rho)
	}
	// Correlated-Bernoulli joint exceeds the Frechet upper bound min(pi,pj)
	// and is clamped to it.
	if math.Abs(pair.JointProb-0.3) > 1e-9 {
		t.Fatalf("expected joint clamped to 0.3, got %f", pair.JointProb)
	}
	// p11=0.3, p10=0.2, p01=0, p00=0.5 over profits (10,-10) x (10,-5):
	// E[XY] = 30 - 10 + 25 = 45
	if math.Abs(pair.Covariance-45.0) > 1e-9 {
		t.Fatalf("expected covariance 45, got %f", pair.Covariance)
	}
	if math.Abs(adjustment-90.0) > 1e-9 {
		t.Fatalf("expected adjustment 90, got %f", adjustment)
	}
}

func TestJointProbabilityFrechetBounds(t *testing.T) {
	ce := NewCovarianceEstimator(NewProbabilityResolver(nil, DefaultResolverConfig(), testLogger()), testLogger())
	ti := &models.Ticket{ID: "a", Odds: 2.0}
	tj := &models.Ticket{ID: "b", Odds: 3.0}

	for _, tc := range []struct{ pi, pj, rho float64 }{
		{0.9, 0.9, 0.85},
		{0.5, 0.3, 0.85},
		{0.1, 0.9, 0.5},
		{0.95, 0.95, 0.2},
	} {
		joint := ce.jointProbability(context.Background(), ti, tj, tc.pi, tc.pj, tc.rho)
		lo := math.Max(0, tc.pi+tc.pj-1)
		hi := math.Min(tc.pi, tc.pj)
		if joint < lo-1e-12 || joint > hi+1e-12 {
			t.Fatalf("joint %f outside Frechet bounds [%f,%f] for %+v", joint, lo, hi, tc)
		}
		if joint < tc.pi*tc.pj-1e-12 {
			t.Fatalf("joint %f below independence product %f", joint, tc.pi*tc.pj)
		}
	}
}

func TestJointProbabilityPrefersSimulatedUnion(t *testing.T) {
	simulate := func(ctx context.Context, legs []string) (float64, error) {
		if len(legs) != 3 {
			t.Fatalf("expected deduplicated union of 3 legs, got %v", legs)
		}
		return 0.2, nil
	}
	ce := NewCovarianceEstimator(NewProbabilityResolver(simulate, DefaultResolverConfig(), testLogger()), testLogger())

	ti := &models.Ticket{ID: "a", Odds: 4.0, Legs: []string{"x", "y"}}
	tj := &models.Ticket{ID: "b", Odds: 4.0, Legs: []string{"y", "z"}}

	joint := ce.jointProbability(context.Background(), ti, tj, 0.3, 0.3, rhoSharedLeg)
	if math.Abs(joint-0.2) > 1e-9 {
		t.Fatalf("expected simulated joint 0.2, got %f", joint)
	}
}

func TestJointProbabilityNeverBelowIndependence(t *testing.T) {
	// A simulated joint below the independence product is raised to it.
	simulate := func(ctx context.Context, legs []string) (float64, error) {
		return 0.01, nil
	}
	ce := NewCovarianceEstimator(NewProbabilityResolver(simulate, DefaultResolverConfig(), testLogger()), testLogger())

	ti := &models.Ticket{ID: "a", Odds: 4.0, Legs: []string{"x"}}
	tj := &models.Ticket{ID: "b", Odds: 4.0, Legs: []string{"y"}}

	joint := ce.jointProbability(context.Background(), ti, tj, 0.4, 0.5, rhoSharedLeg)
	if math.Abs(joint-0.2) > 1e-9 {
		t.Fatalf("expected independence floor 0.2, got %f", joint)
	}
}
