// Package engine implements the staking and risk pipeline: probability
// resolution, Kelly sizing, dutching, covariance adjustment, budget
// normalization, risk-of-ruin enforcement and the final decision gate.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/models"
)

// SimulateFunc supplies the joint win probability for a set of legs. It is
// provided by the calibration store (or any other collaborator) and must
// return a value in [0,1]. It may be called repeatedly with the same
// arguments.
type SimulateFunc func(ctx context.Context, legs []string) (float64, error)

// ResolverConfig configures the probability resolver
type ResolverConfig struct {
	// Lenient makes a ticket with no probability source resolve to 0.0
	// (zero-edge, zero-stake) instead of failing. Explicit opt-in only.
	Lenient      bool
	CacheTTL     time.Duration
	CacheMaxSize int
}

// DefaultResolverConfig returns recommended defaults
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Lenient:      false,
		CacheTTL:     15 * time.Minute,
		CacheMaxSize: 10000,
	}
}

// ProbabilityResolver turns a ticket's declared data into a single win/place
// probability. Explicit probabilities win; multi-leg tickets are evaluated
// through the supplied SimulateFunc with results cached by a canonical,
// order-independent leg key.
type ProbabilityResolver struct {
	simulate  SimulateFunc
	cache     *cache.Cache
	maxSize   int
	lenient   bool
	logger    *logrus.Logger
	mu        sync.RWMutex
	hitCount  uint64
	missCount uint64
}

// NewProbabilityResolver creates a resolver. simulate may be nil when the
// portfolio carries only explicit probabilities.
func NewProbabilityResolver(simulate SimulateFunc, cfg ResolverConfig, logger *logrus.Logger) *ProbabilityResolver {
	var c *cache.Cache
	if cfg.CacheTTL > 0 {
		c = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}
	return &ProbabilityResolver{
		simulate: simulate,
		cache:    c,
		maxSize:  cfg.CacheMaxSize,
		lenient:  cfg.Lenient,
		logger:   logger,
	}
}

// Resolve returns the win probability for a ticket.
// Declared probabilities are validated and returned directly; multi-leg
// tickets go through Joint. With no source and lenient mode off, it fails
// with ErrProbabilityUnavailable.
func (r *ProbabilityResolver) Resolve(ctx context.Context, t *models.Ticket) (float64, error) {
	if t.Probability != nil {
		p := *t.Probability
		if p <= 0 || p >= 1 {
			return 0, fmt.Errorf("ticket %s: probability %f: %w", t.ID, p, models.ErrInvalidProbability)
		}
		return p, nil
	}

	if len(t.Legs) > 0 && r.simulate != nil {
		p, err := r.Joint(ctx, t.Legs)
		if err != nil {
			return 0, fmt.Errorf("ticket %s: %w", t.ID, err)
		}
		return p, nil
	}

	if r.lenient {
		r.logger.WithField("ticket_id", t.ID).Debug("No probability source, lenient fallback to zero edge")
		return 0, nil
	}

	return 0, fmt.Errorf("ticket %s: %w", t.ID, models.ErrProbabilityUnavailable)
}

// Joint returns the simulated joint probability for a leg set, cached by the
// canonical key. Used both for ticket resolution and for leg-union joint
// probabilities during covariance estimation.
func (r *ProbabilityResolver) Joint(ctx context.Context, legs []string) (float64, error) {
	if r.simulate == nil {
		return 0, models.ErrProbabilityUnavailable
	}

	key := legKey(legs)

	if r.cache != nil {
		if cached, found := r.cache.Get(key); found {
			r.recordHit(true)
			return cached.(float64), nil
		}
		r.recordHit(false)
	}

	p, err := r.simulate(ctx, legs)
	if err != nil {
		return 0, fmt.Errorf("simulate failed for legs %s: %w", key, err)
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("simulate returned %f for legs %s: %w", p, key, models.ErrInvalidProbability)
	}

	if r.cache != nil {
		if r.cache.ItemCount() >= r.maxSize {
			r.cache.DeleteExpired()
		}
		r.cache.Set(key, p, cache.DefaultExpiration)
	}

	return p, nil
}

// Stats returns cache hit/miss counts and the hit ratio
func (r *ProbabilityResolver) Stats() (hits, misses uint64, ratio float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hits = r.hitCount
	misses = r.missCount
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

func (r *ProbabilityResolver) recordHit(hit bool) {
	r.mu.Lock()
	if hit {
		r.hitCount++
	} else {
		r.missCount++
	}
	r.mu.Unlock()
}

// legKey builds a canonical, order-independent cache key so that leg
// permutations collapse to one entry.
func legKey(legs []string) string {
	sorted := make([]string, len(legs))
	for i, leg := range legs {
		sorted[i] = strings.TrimSpace(leg)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
