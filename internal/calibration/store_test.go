package calibration

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stakecraft/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type fakeSource struct {
	outcomes []LegOutcome
	err      error
}

func (f *fakeSource) LegOutcomes(ctx context.Context) ([]LegOutcome, error) {
	return f.outcomes, f.err
}

type fakeRemote struct {
	p     float64
	err   error
	calls int
}

func (f *fakeRemote) JointProbability(ctx context.Context, legs []string) (float64, error) {
	f.calls++
	return f.p, f.err
}

func seedStore(s *Store, legs []string, wins, losses int) {
	for i := 0; i < wins; i++ {
		s.Record(LegOutcome{Legs: legs, Won: true})
	}
	for i := 0; i < losses; i++ {
		s.Record(LegOutcome{Legs: legs, Won: false})
	}
}

func TestStoreSmoothedHitRate(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), nil, nil, testLogger())
	seedStore(s, []string{"x", "y"}, 6, 4)

	p, err := s.Probability(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	// (6+1)/(10+2)
	assert.InDelta(t, 7.0/12.0, p, 1e-12)
}

func TestStoreOrderIndependentKey(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), nil, nil, testLogger())
	seedStore(s, []string{"x", "y"}, 6, 4)

	p1, err := s.Probability(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	p2, err := s.Probability(context.Background(), []string{"y", " x"})
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestStoreThinHistoryFallsBackToLegProduct(t *testing.T) {
	cfg := DefaultStoreConfig()
	cfg.MinSamples = 5
	s := NewStore(cfg, nil, nil, testLogger())

	// Only 2 samples for the pair, but each leg individually has history
	// through other combinations.
	seedStore(s, []string{"x", "y"}, 1, 1)
	seedStore(s, []string{"x"}, 4, 2)
	seedStore(s, []string{"y"}, 2, 4)

	p, err := s.Probability(context.Background(), []string{"x", "y"})
	require.NoError(t, err)

	// x: (5+1)/(8+2), y: (3+1)/(8+2)
	assert.InDelta(t, 0.6*0.4, p, 1e-12)
}

func TestStoreUnknownLegsUnavailable(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), nil, nil, testLogger())

	_, err := s.Probability(context.Background(), []string{"never-seen"})
	assert.ErrorIs(t, err, models.ErrProbabilityUnavailable)
}

func TestStoreRemoteFallback(t *testing.T) {
	remote := &fakeRemote{p: 0.22}
	s := NewStore(DefaultStoreConfig(), nil, remote, testLogger())

	p, err := s.Probability(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, 0.22, p)
	assert.Equal(t, 1, remote.calls)

	// Second lookup is served from cache
	_, err = s.Probability(context.Background(), []string{"y", "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, remote.calls)
}

func TestStoreRemoteErrorFallsBackToLegProduct(t *testing.T) {
	remote := &fakeRemote{err: errors.New("service down")}
	cfg := DefaultStoreConfig()
	cfg.MinSamples = 1
	s := NewStore(cfg, nil, remote, testLogger())

	seedStore(s, []string{"x"}, 1, 1)
	seedStore(s, []string{"y"}, 1, 1)

	p, err := s.Probability(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p, 1e-12)
}

func TestStoreRefresh(t *testing.T) {
	source := &fakeSource{outcomes: []LegOutcome{
		{Legs: []string{"x", "y"}, Won: true},
		{Legs: []string{"x", "y"}, Won: false},
		{Legs: []string{"z"}, Won: true},
	}}
	s := NewStore(DefaultStoreConfig(), source, nil, testLogger())

	combos, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, combos)
	assert.Equal(t, 2, s.Combinations())
	assert.False(t, s.LastRefresh().IsZero())
}

func TestStoreRefreshReplacesHistory(t *testing.T) {
	source := &fakeSource{outcomes: []LegOutcome{{Legs: []string{"a"}, Won: true}}}
	s := NewStore(DefaultStoreConfig(), source, nil, testLogger())
	seedStore(s, []string{"stale"}, 3, 3)

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.Combinations())
	_, err = s.Probability(context.Background(), []string{"stale"})
	assert.ErrorIs(t, err, models.ErrProbabilityUnavailable)
}

func TestStoreRefreshSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db offline")}
	s := NewStore(DefaultStoreConfig(), source, nil, testLogger())

	_, err := s.Refresh(context.Background())
	assert.Error(t, err)
}

func TestStoreEmptyLegSet(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), nil, nil, testLogger())

	_, err := s.Probability(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrProbabilityUnavailable)
}
