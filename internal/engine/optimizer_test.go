package engine

import (
	"testing"

	"github.com/yourusername/stakecraft/internal/models"
)

func TestLogUtilityMovesTowardFullKelly(t *testing.T) {
	lo := NewLogUtilityOptimizer(testLogger())
	th := models.Thresholds{KellyCap: 0.6, MinStake: 0.1}

	tickets := []*models.Ticket{{ID: "a", Kind: models.TicketKindSingle, Odds: 2.0}}
	probs := map[string]float64{"a": 0.6}

	if err := lo.Allocate(tickets, probs, 100, th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Unconstrained optimum for p=0.6 at evens is full Kelly, 20. The warm
	// start is the fractional-Kelly 12; ascent must move up without
	// overshooting.
	got := tickets[0].StakeValue()
	if got <= 12.0 {
		t.Fatalf("expected ascent above the fractional-Kelly start, got %f", got)
	}
	if got > 20.5 {
		t.Fatalf("overshot the full-Kelly optimum, got %f", got)
	}
}

func TestLogUtilityRespectsBudgetCap(t *testing.T) {
	lo := NewLogUtilityOptimizer(testLogger())
	th := models.Thresholds{KellyCap: 0.2, MinStake: 0.1}

	tickets := []*models.Ticket{
		{ID: "a", Kind: models.TicketKindSingle, Odds: 2.0},
		{ID: "b", Kind: models.TicketKindSingle, Odds: 2.0},
	}
	probs := map[string]float64{"a": 0.9, "b": 0.9}

	if err := lo.Allocate(tickets, probs, 100, th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := tickets[0].StakeValue() + tickets[1].StakeValue()
	if total > 20+1e-9 {
		t.Fatalf("stake total %f exceeds budget cap 20", total)
	}
	if total < 19 {
		t.Fatalf("binding budget should be nearly exhausted, got %f", total)
	}
}

func TestLogUtilityZeroesNonCandidates(t *testing.T) {
	lo := NewLogUtilityOptimizer(testLogger())
	th := models.Thresholds{KellyCap: 0.6, MinStake: 0.1}

	tickets := []*models.Ticket{
		{ID: "a", Kind: models.TicketKindSingle, Odds: 0.9, Stake: fp(10)},
		{ID: "b", Kind: models.TicketKindSingle, Odds: 2.0, Stake: fp(10)},
	}
	probs := map[string]float64{"a": 0.6, "b": 0}

	if err := lo.Allocate(tickets, probs, 100, th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tickets[0].StakeValue() != 0 || tickets[1].StakeValue() != 0 {
		t.Fatalf("invalid odds and zero probability must both be zeroed, got %f and %f",
			tickets[0].StakeValue(), tickets[1].StakeValue())
	}
}

func TestLogUtilityKeepsSmallerDeclaredStake(t *testing.T) {
	lo := NewLogUtilityOptimizer(testLogger())
	th := models.Thresholds{KellyCap: 0.6, MinStake: 0.1}

	tickets := []*models.Ticket{{ID: "a", Kind: models.TicketKindSingle, Odds: 2.0, Stake: fp(5)}}
	probs := map[string]float64{"a": 0.6}

	if err := lo.Allocate(tickets, probs, 100, th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tickets[0].StakeValue(); got != 5 {
		t.Fatalf("declared stake below the optimum must be kept, got %f", got)
	}
}
