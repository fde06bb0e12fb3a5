package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/yourusername/stakecraft/internal/models"
)

func TestResolveExplicitProbability(t *testing.T) {
	r := NewProbabilityResolver(nil, DefaultResolverConfig(), testLogger())

	p, err := r.Resolve(context.Background(), &models.Ticket{ID: "a", Odds: 2.0, Probability: fp(0.6)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 0.6 {
		t.Fatalf("expected 0.6, got %f", p)
	}
}

func TestResolveRejectsMalformedProbability(t *testing.T) {
	r := NewProbabilityResolver(nil, DefaultResolverConfig(), testLogger())

	for _, bad := range []float64{0, 1, -0.2, 1.5} {
		_, err := r.Resolve(context.Background(), &models.Ticket{ID: "a", Odds: 2.0, Probability: fp(bad)})
		if !errors.Is(err, models.ErrInvalidProbability) {
			t.Fatalf("probability %f: expected ErrInvalidProbability, got %v", bad, err)
		}
	}
}

func TestResolveLegsThroughSimulate(t *testing.T) {
	calls := 0
	simulate := func(ctx context.Context, legs []string) (float64, error) {
		calls++
		return 0.25, nil
	}
	r := NewProbabilityResolver(simulate, DefaultResolverConfig(), testLogger())

	ticket := &models.Ticket{ID: "a", Kind: models.TicketKindCombo, Odds: 5.0, Legs: []string{"x", "y"}}
	p, err := r.Resolve(context.Background(), ticket)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 0.25 {
		t.Fatalf("expected 0.25, got %f", p)
	}
	if calls != 1 {
		t.Fatalf("expected one simulate call, got %d", calls)
	}
}

func TestResolveCachesByCanonicalLegKey(t *testing.T) {
	calls := 0
	simulate := func(ctx context.Context, legs []string) (float64, error) {
		calls++
		return 0.3, nil
	}
	r := NewProbabilityResolver(simulate, DefaultResolverConfig(), testLogger())

	// Same legs in different orders and with stray whitespace collapse to
	// one cache entry.
	if _, err := r.Joint(context.Background(), []string{"x", "y", "z"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Joint(context.Background(), []string{"z", " x", "y "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("permutation missed cache, %d simulate calls", calls)
	}

	hits, misses, ratio := r.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("expected 1 hit / 1 miss, got %d / %d", hits, misses)
	}
	if ratio != 0.5 {
		t.Fatalf("expected ratio 0.5, got %f", ratio)
	}
}

func TestResolveStrictFailsWithoutSource(t *testing.T) {
	r := NewProbabilityResolver(nil, DefaultResolverConfig(), testLogger())

	_, err := r.Resolve(context.Background(), &models.Ticket{ID: "a", Odds: 2.0})
	if !errors.Is(err, models.ErrProbabilityUnavailable) {
		t.Fatalf("expected ErrProbabilityUnavailable, got %v", err)
	}
}

func TestResolveLenientZeroEdge(t *testing.T) {
	cfg := DefaultResolverConfig()
	cfg.Lenient = true
	r := NewProbabilityResolver(nil, cfg, testLogger())

	p, err := r.Resolve(context.Background(), &models.Ticket{ID: "a", Odds: 2.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 0 {
		t.Fatalf("lenient fallback must be zero edge, got %f", p)
	}
}

func TestJointRejectsOutOfRangeSimulate(t *testing.T) {
	simulate := func(ctx context.Context, legs []string) (float64, error) {
		return 1.7, nil
	}
	r := NewProbabilityResolver(simulate, DefaultResolverConfig(), testLogger())

	_, err := r.Joint(context.Background(), []string{"x"})
	if !errors.Is(err, models.ErrInvalidProbability) {
		t.Fatalf("expected ErrInvalidProbability, got %v", err)
	}
}

func TestJointPropagatesSimulateError(t *testing.T) {
	boom := errors.New("model offline")
	simulate := func(ctx context.Context, legs []string) (float64, error) {
		return 0, boom
	}
	r := NewProbabilityResolver(simulate, DefaultResolverConfig(), testLogger())

	_, err := r.Joint(context.Background(), []string{"x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped simulate error, got %v", err)
	}
}
