package engine

import (
	"math"
	"testing"

	"github.com/yourusername/stakecraft/internal/models"
)

func TestNormalizeScalesToBudget(t *testing.T) {
	bn := NewBudgetNormalizer(testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, Stake: fp(120)},
		{ID: "b", Odds: 3.0, Stake: fp(80)},
	}

	bn.Normalize(tickets, 100, 0)

	if got := stakeSum(tickets); got > 100+budgetEpsilon {
		t.Fatalf("budget invariant violated: %f", got)
	}
	// Relative allocation preserved: 120:80 = 60:40
	if got := tickets[0].StakeValue(); math.Abs(got-60) > 1e-9 {
		t.Fatalf("expected 60, got %f", got)
	}
	if got := tickets[1].StakeValue(); math.Abs(got-40) > 1e-9 {
		t.Fatalf("expected 40, got %f", got)
	}
}

func TestNormalizeUnderBudgetUntouched(t *testing.T) {
	bn := NewBudgetNormalizer(testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, Stake: fp(30)},
		{ID: "b", Odds: 3.0, Stake: fp(20)},
	}

	bn.Normalize(tickets, 100, 0)

	if tickets[0].StakeValue() != 30 || tickets[1].StakeValue() != 20 {
		t.Fatalf("under-budget portfolio must not be rescaled")
	}
}

func TestNormalizeRoundsToIncrement(t *testing.T) {
	bn := NewBudgetNormalizer(testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, Stake: fp(10.37)},
		{ID: "b", Odds: 3.0, Stake: fp(5.44)},
	}

	bn.Normalize(tickets, 100, 0.5)

	for _, tk := range tickets {
		s := tk.StakeValue()
		mult := s / 0.5
		if math.Abs(mult-math.Round(mult)) > 1e-9 {
			t.Fatalf("stake %f not on 0.5 increment", s)
		}
	}
}

func TestNormalizeResidualAbsorbedByLargest(t *testing.T) {
	bn := NewBudgetNormalizer(testLogger())

	// Over budget: scaled to exactly 100, then rounded; residual parks on
	// the largest ticket so the total lands back on budget.
	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, Stake: fp(66.6)},
		{ID: "b", Odds: 3.0, Stake: fp(33.3)},
		{ID: "c", Odds: 4.0, Stake: fp(22.2)},
	}

	bn.Normalize(tickets, 100, 1.0)

	total := stakeSum(tickets)
	if total > 100+budgetEpsilon {
		t.Fatalf("budget invariant violated: %f", total)
	}
	if math.Abs(total-100) > 1e-6 {
		t.Fatalf("residual not absorbed, total %f", total)
	}
}

func TestNormalizeBudgetInvariantHolds(t *testing.T) {
	bn := NewBudgetNormalizer(testLogger())

	vectors := [][]float64{
		{0.3, 0.4, 0.35},
		{99.9, 0.2},
		{1000, 2000, 3000},
		{0.01},
		{33.33, 33.33, 33.35},
	}

	for _, stakes := range vectors {
		tickets := make([]*models.Ticket, len(stakes))
		for i, s := range stakes {
			tickets[i] = &models.Ticket{ID: string(rune('a' + i)), Odds: 2.0, Stake: fp(s)}
		}
		bn.Normalize(tickets, 100, 0.1)
		if got := stakeSum(tickets); got > 100+budgetEpsilon {
			t.Fatalf("budget invariant violated for %v: %f", stakes, got)
		}
		for _, tk := range tickets {
			if tk.StakeValue() < 0 {
				t.Fatalf("negative stake for %v", stakes)
			}
		}
	}
}

func TestNormalizeZeroTotalNoOp(t *testing.T) {
	bn := NewBudgetNormalizer(testLogger())

	tickets := []*models.Ticket{{ID: "a", Odds: 2.0, Stake: fp(0)}}
	bn.Normalize(tickets, 100, 0.1)

	if tickets[0].StakeValue() != 0 {
		t.Fatalf("zero stake must stay zero")
	}
}
