// Package calibration turns historical combination outcomes into smoothed win
// probabilities for the staking engine. The store is the default SimulateFunc
// backing probability resolution; an optional remote service can supply joint
// probabilities for combinations with no local history.
package calibration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/metrics"
	"github.com/yourusername/stakecraft/internal/models"
)

// LegOutcome is one settled historical result for a leg combination.
type LegOutcome struct {
	Legs []string
	Won  bool
}

// OutcomeSource supplies settled outcomes, typically the outcome repository.
type OutcomeSource interface {
	LegOutcomes(ctx context.Context) ([]LegOutcome, error)
}

// JointProvider supplies joint probabilities for combinations the store has
// never seen. Implemented by the remote calibration client.
type JointProvider interface {
	JointProbability(ctx context.Context, legs []string) (float64, error)
}

// StoreConfig configures the calibration store
type StoreConfig struct {
	// Smoothing is the Laplace prior weight applied to hit rates so that
	// thin histories do not produce 0.0 or 1.0 probabilities.
	Smoothing  float64
	MinSamples int
	CacheTTL   time.Duration
	CacheSize  int
}

// DefaultStoreConfig returns recommended defaults
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Smoothing:  1.0,
		MinSamples: 5,
		CacheTTL:   15 * time.Minute,
		CacheSize:  10000,
	}
}

type tally struct {
	wins  int
	total int
}

// Store aggregates historical outcomes into per-combination hit rates.
type Store struct {
	cfg    StoreConfig
	source OutcomeSource
	remote JointProvider
	cache  *cache.Cache
	logger *logrus.Logger

	mu      sync.RWMutex
	combos  map[string]*tally
	legs    map[string]*tally
	refresh time.Time
}

// NewStore creates a calibration store. source may be nil for a store fed
// only through Record; remote may be nil when no fallback service exists.
func NewStore(cfg StoreConfig, source OutcomeSource, remote JointProvider, logger *logrus.Logger) *Store {
	return &Store{
		cfg:    cfg,
		source: source,
		remote: remote,
		cache:  cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		logger: logger,
		combos: make(map[string]*tally),
		legs:   make(map[string]*tally),
	}
}

// Record folds one settled outcome into the hit-rate tallies.
func (s *Store) Record(outcome LegOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(outcome)
}

func (s *Store) record(outcome LegOutcome) {
	key := comboKey(outcome.Legs)
	if key == "" {
		return
	}

	t := s.combos[key]
	if t == nil {
		t = &tally{}
		s.combos[key] = t
	}
	t.total++
	if outcome.Won {
		t.wins++
	}

	for _, leg := range outcome.Legs {
		leg = strings.TrimSpace(leg)
		if leg == "" {
			continue
		}
		lt := s.legs[leg]
		if lt == nil {
			lt = &tally{}
			s.legs[leg] = lt
		}
		lt.total++
		if outcome.Won {
			lt.wins++
		}
	}
}

// Refresh rebuilds the tallies from the outcome source and flushes the
// probability cache.
func (s *Store) Refresh(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, nil
	}

	start := time.Now()
	outcomes, err := s.source.LegOutcomes(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading outcomes: %w", err)
	}

	s.mu.Lock()
	s.combos = make(map[string]*tally, len(outcomes))
	s.legs = make(map[string]*tally)
	for _, o := range outcomes {
		s.record(o)
	}
	s.refresh = time.Now()
	combinations := len(s.combos)
	s.mu.Unlock()

	s.cache.Flush()
	metrics.CalibrationRefreshesTotal.Inc()

	s.logger.WithFields(logrus.Fields{
		"outcomes":     len(outcomes),
		"combinations": combinations,
		"duration":     time.Since(start).String(),
	}).Info("Calibration store refreshed")

	return combinations, nil
}

// Probability returns the smoothed win probability for a leg combination. It
// satisfies the engine's SimulateFunc signature. Resolution order: exact
// combination history, the remote joint provider, then the independence
// product of per-leg hit rates.
func (s *Store) Probability(ctx context.Context, legs []string) (float64, error) {
	start := time.Now()
	defer func() {
		metrics.CalibrationLookupLatency.Observe(time.Since(start).Seconds())
	}()

	key := comboKey(legs)
	if key == "" {
		return 0, fmt.Errorf("empty leg set: %w", models.ErrProbabilityUnavailable)
	}

	if cached, found := s.cache.Get(key); found {
		return cached.(float64), nil
	}

	p, err := s.lookup(ctx, legs, key)
	if err != nil {
		return 0, err
	}

	if s.cache.ItemCount() >= s.cfg.CacheSize {
		s.cache.DeleteExpired()
	}
	s.cache.Set(key, p, cache.DefaultExpiration)

	return p, nil
}

func (s *Store) lookup(ctx context.Context, legs []string, key string) (float64, error) {
	s.mu.RLock()
	combo := s.combos[key]
	if combo != nil && combo.total >= s.cfg.MinSamples {
		p := s.smoothed(combo)
		s.mu.RUnlock()
		return p, nil
	}
	s.mu.RUnlock()

	if s.remote != nil {
		p, err := s.remote.JointProbability(ctx, legs)
		if err == nil {
			return p, nil
		}
		s.logger.WithError(err).WithField("legs", key).Debug("Remote calibration lookup failed, falling back to leg product")
	}

	return s.legProduct(legs, key)
}

// legProduct multiplies per-leg smoothed hit rates as an independence
// approximation. Every leg must have at least MinSamples of history.
func (s *Store) legProduct(legs []string, key string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := 1.0
	for _, leg := range legs {
		leg = strings.TrimSpace(leg)
		lt := s.legs[leg]
		if lt == nil || lt.total < s.cfg.MinSamples {
			return 0, fmt.Errorf("no calibration history for leg %q in %s: %w", leg, key, models.ErrProbabilityUnavailable)
		}
		p *= s.smoothed(lt)
	}
	return p, nil
}

func (s *Store) smoothed(t *tally) float64 {
	return (float64(t.wins) + s.cfg.Smoothing) / (float64(t.total) + 2.0*s.cfg.Smoothing)
}

// Combinations returns the number of distinct combinations with history.
func (s *Store) Combinations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.combos)
}

// LastRefresh returns the time of the last successful Refresh.
func (s *Store) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// comboKey builds the canonical order-independent key for a leg set.
func comboKey(legs []string) string {
	cleaned := make([]string, 0, len(legs))
	for _, leg := range legs {
		leg = strings.TrimSpace(leg)
		if leg != "" {
			cleaned = append(cleaned, leg)
		}
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, "|")
}
