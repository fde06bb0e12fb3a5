package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

func fp(v float64) *float64 {
	return &v
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name     string
		p        float64
		odds     float64
		expected float64
	}{
		{name: "positive edge", p: 0.6, odds: 2.0, expected: 0.2},
		{name: "negative edge floors at zero", p: 0.4, odds: 2.0, expected: 0.0},
		{name: "break even sizes to zero", p: 0.5, odds: 2.0, expected: 0.0},
		{name: "long odds", p: 0.3, odds: 5.0, expected: 0.125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := KellyFraction(tt.p, tt.odds)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(f-tt.expected) > 1e-12 {
				t.Fatalf("expected %f, got %f", tt.expected, f)
			}
			if f < 0 {
				t.Fatalf("kelly fraction must be non-negative, got %f", f)
			}
		})
	}
}

func TestKellyFractionInvalidInputs(t *testing.T) {
	if _, err := KellyFraction(0, 2.0); !errors.Is(err, models.ErrInvalidProbability) {
		t.Fatalf("expected ErrInvalidProbability, got %v", err)
	}
	if _, err := KellyFraction(1, 2.0); !errors.Is(err, models.ErrInvalidProbability) {
		t.Fatalf("expected ErrInvalidProbability, got %v", err)
	}
	if _, err := KellyFraction(0.5, 1.0); !errors.Is(err, models.ErrInvalidOdds) {
		t.Fatalf("expected ErrInvalidOdds, got %v", err)
	}
	if _, err := KellyFraction(0.5, 0.8); !errors.Is(err, models.ErrInvalidOdds) {
		t.Fatalf("expected ErrInvalidOdds, got %v", err)
	}
}

func TestCappedStake(t *testing.T) {
	// odds=2.0, p=0.6, bankroll=100, cap=0.6 -> 0.2 * 100 * 0.6 = 12.0
	stake, err := CappedStake(0.6, 2.0, 100, 0.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(stake-12.0) > 1e-12 {
		t.Fatalf("expected 12.0, got %f", stake)
	}
}

func TestKellyStakerAllocate(t *testing.T) {
	ks := NewKellyStaker(testLogger())
	th := models.Thresholds{KellyCap: 0.6, MinStake: 0.1}

	tickets := []*models.Ticket{
		{ID: "a", Kind: models.TicketKindSingle, Odds: 2.0},
		{ID: "b", Kind: models.TicketKindSingle, Odds: 2.0, Stake: fp(5.0)},
		{ID: "c", Kind: models.TicketKindSingle, Odds: 2.0, Stake: fp(500.0)},
		{ID: "d", Kind: models.TicketKindSingle, Odds: 0.9},
	}
	probs := map[string]float64{"a": 0.6, "b": 0.6, "c": 0.6, "d": 0.6}

	if err := ks.Allocate(tickets, probs, 100, th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tickets[0].StakeValue(); math.Abs(got-12.0) > 1e-12 {
		t.Fatalf("ticket a: expected 12.0, got %f", got)
	}
	// Declared stakes may be smaller than the cap, never larger
	if got := tickets[1].StakeValue(); got != 5.0 {
		t.Fatalf("ticket b: expected declared 5.0, got %f", got)
	}
	if got := tickets[2].StakeValue(); math.Abs(got-12.0) > 1e-12 {
		t.Fatalf("ticket c: expected clamp to 12.0, got %f", got)
	}
	if got := tickets[3].StakeValue(); got != 0 {
		t.Fatalf("ticket d: invalid odds must be zeroed, got %f", got)
	}
}

func TestKellyStakerDustFloor(t *testing.T) {
	ks := NewKellyStaker(testLogger())
	th := models.Thresholds{KellyCap: 0.6, MinStake: 2.0}

	tickets := []*models.Ticket{{ID: "a", Kind: models.TicketKindSingle, Odds: 2.0}}
	probs := map[string]float64{"a": 0.51}

	if err := ks.Allocate(tickets, probs, 100, th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// kelly = 0.02, stake = 1.2 < 2.0 dust floor
	if got := tickets[0].StakeValue(); got != 0 {
		t.Fatalf("expected dust stake zeroed, got %f", got)
	}
}
