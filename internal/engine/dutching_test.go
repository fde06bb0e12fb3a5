package engine

import (
	"math"
	"testing"

	"github.com/yourusername/stakecraft/internal/models"
)

func TestDutchingEqualizesProfit(t *testing.T) {
	da := NewDutchingAllocator(testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, GroupKey: "g1", Stake: fp(100)},
		{ID: "b", Odds: 4.0, GroupKey: "g1", Stake: fp(50)},
	}

	da.Apply(tickets)

	// total=150, weights 1.0 and 1/3 -> stakes 112.5 and 37.5
	if got := tickets[0].StakeValue(); math.Abs(got-112.5) > 1e-9 {
		t.Fatalf("expected 112.5, got %f", got)
	}
	if got := tickets[1].StakeValue(); math.Abs(got-37.5) > 1e-9 {
		t.Fatalf("expected 37.5, got %f", got)
	}

	profitA := tickets[0].StakeValue() * (tickets[0].Odds - 1.0)
	profitB := tickets[1].StakeValue() * (tickets[1].Odds - 1.0)
	if math.Abs(profitA-profitB) > 1e-9 {
		t.Fatalf("profits not equalized: %f vs %f", profitA, profitB)
	}
	if math.Abs(profitA-112.5) > 1e-9 {
		t.Fatalf("expected profit 112.5, got %f", profitA)
	}
}

func TestDutchingConservesMass(t *testing.T) {
	da := NewDutchingAllocator(testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 3.0, GroupKey: "g", Stake: fp(20)},
		{ID: "b", Odds: 5.5, GroupKey: "g", Stake: fp(33.7)},
		{ID: "c", Odds: 11.0, GroupKey: "g", Stake: fp(8.15)},
	}

	before := 0.0
	for _, tk := range tickets {
		before += tk.StakeValue()
	}

	da.Apply(tickets)

	after := 0.0
	for _, tk := range tickets {
		after += tk.StakeValue()
	}
	if math.Abs(before-after) > 1e-9 {
		t.Fatalf("group total changed: %f -> %f", before, after)
	}
}

func TestDutchingInvalidOddsNoOp(t *testing.T) {
	da := NewDutchingAllocator(testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, GroupKey: "g", Stake: fp(100)},
		{ID: "b", Odds: 1.0, GroupKey: "g", Stake: fp(50)},
	}

	da.Apply(tickets)

	if tickets[0].StakeValue() != 100 || tickets[1].StakeValue() != 50 {
		t.Fatalf("group with invalid odds must be untouched, got %f and %f",
			tickets[0].StakeValue(), tickets[1].StakeValue())
	}
}

func TestDutchingSingletonUntouched(t *testing.T) {
	da := NewDutchingAllocator(testLogger())

	tickets := []*models.Ticket{
		{ID: "a", Odds: 2.0, GroupKey: "g", Stake: fp(42)},
		{ID: "b", Odds: 3.0, Stake: fp(10)},
	}

	da.Apply(tickets)

	if tickets[0].StakeValue() != 42 {
		t.Fatalf("singleton group must be untouched, got %f", tickets[0].StakeValue())
	}
	if tickets[1].StakeValue() != 10 {
		t.Fatalf("ungrouped ticket must be untouched, got %f", tickets[1].StakeValue())
	}
}
