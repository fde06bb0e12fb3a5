// Package metrics provides the centralized Prometheus metrics registry for
// the staking engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PortfoliosEvaluatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stakecraft",
		Name:      "portfolios_evaluated_total",
		Help:      "Total number of portfolios run through the staking pipeline",
	})
	PortfoliosAcceptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stakecraft",
		Name:      "portfolios_accepted_total",
		Help:      "Total number of portfolios accepted by the decision gate",
	})
	PortfoliosAbstainedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stakecraft",
		Name:      "portfolios_abstained_total",
		Help:      "Total number of portfolios rejected by the decision gate",
	})
	GateFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakecraft",
		Name:      "gate_failures_total",
		Help:      "Decision gate failures by gate",
	}, []string{"gate"})
	CalibrationRefreshesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stakecraft",
		Name:      "calibration_refreshes_total",
		Help:      "Total number of calibration store refreshes",
	})
	DecisionsPersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stakecraft",
		Name:      "decisions_persisted_total",
		Help:      "Total number of decisions written to storage",
	})
)

// Gauge metrics
var (
	StakeTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakecraft",
		Name:      "stake_total",
		Help:      "Total stake of the most recently evaluated portfolio",
	})
	PortfolioRiskOfRuin = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakecraft",
		Name:      "portfolio_risk_of_ruin",
		Help:      "Risk of ruin of the most recently evaluated portfolio",
	})
	ProbabilityCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakecraft",
		Name:      "probability_cache_hit_ratio",
		Help:      "Hit ratio of the probability resolver cache",
	})
	StreamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakecraft",
		Name:      "stream_subscribers",
		Help:      "Number of connected decision stream subscribers",
	})
)

// Histogram metrics
var (
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stakecraft",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of full portfolio evaluations in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	EnforcerIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stakecraft",
		Name:      "enforcer_iterations",
		Help:      "Iterations taken by the risk-of-ruin enforcement loop",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 48},
	})
	CalibrationLookupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stakecraft",
		Name:      "calibration_lookup_latency_seconds",
		Help:      "Latency of calibration probability lookups in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PortfoliosEvaluatedTotal)
		registry.MustRegister(PortfoliosAcceptedTotal)
		registry.MustRegister(PortfoliosAbstainedTotal)
		registry.MustRegister(GateFailuresTotal)
		registry.MustRegister(CalibrationRefreshesTotal)
		registry.MustRegister(DecisionsPersistedTotal)

		registry.MustRegister(StakeTotal)
		registry.MustRegister(PortfolioRiskOfRuin)
		registry.MustRegister(ProbabilityCacheHitRatio)
		registry.MustRegister(StreamSubscribers)

		registry.MustRegister(EvaluationDuration)
		registry.MustRegister(EnforcerIterations)
		registry.MustRegister(CalibrationLookupLatency)
	})
	return registry
}

// Handler returns an HTTP handler serving the registry
func Handler() http.Handler {
	return promhttp.HandlerFor(InitRegistry(), promhttp.HandlerOpts{})
}
