package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/metrics"
	"github.com/yourusername/stakecraft/internal/models"
)

// Engine wires the staking stages into the single synchronous pipeline:
// resolve probabilities, size stakes, equalize dutching groups, adjust
// variance for covariance, normalize to budget, enforce the risk-of-ruin
// target, and gate the result. No stage performs I/O; the whole run is
// bounded.
type Engine struct {
	resolver   *ProbabilityResolver
	staker     Staker
	dutching   *DutchingAllocator
	covariance *CovarianceEstimator
	normalizer *BudgetNormalizer
	enforcer   *RiskOfRuinEnforcer
	gate       *DecisionGate
	logger     *logrus.Logger
}

// Option customizes engine construction
type Option func(*Engine)

// WithStaker swaps the staking strategy (e.g. the log-utility optimizer)
func WithStaker(s Staker) Option {
	return func(e *Engine) {
		e.staker = s
	}
}

// NewEngine creates a fully wired staking engine. simulate may be nil when
// every ticket carries an explicit probability.
func NewEngine(simulate SimulateFunc, resolverCfg ResolverConfig, logger *logrus.Logger, opts ...Option) *Engine {
	resolver := NewProbabilityResolver(simulate, resolverCfg, logger)
	normalizer := NewBudgetNormalizer(logger)

	e := &Engine{
		resolver:   resolver,
		staker:     NewKellyStaker(logger),
		dutching:   NewDutchingAllocator(logger),
		covariance: NewCovarianceEstimator(resolver, logger),
		normalizer: normalizer,
		enforcer:   NewRiskOfRuinEnforcer(normalizer, logger),
		gate:       NewDecisionGate(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the full pipeline over the portfolio, mutating ticket stakes
// in place and returning the decision plus all derived metrics. Structural
// input errors (bad bankroll, malformed probabilities, missing probability
// sources) abort the run; individually invalid tickets are zeroed and
// excluded instead.
func (e *Engine) Evaluate(ctx context.Context, p *models.Portfolio) (*models.EvaluationResult, error) {
	start := time.Now()

	if p.Bankroll <= 0 {
		return nil, fmt.Errorf("bankroll %.2f: %w", p.Bankroll, models.ErrBudgetInvalid)
	}
	th := p.Thresholds
	if th.KellyCap <= 0 || th.KellyCap > 1 {
		return nil, fmt.Errorf("kelly_cap %.2f must be in (0,1]", th.KellyCap)
	}

	probs, err := e.resolveAll(ctx, p.Tickets)
	if err != nil {
		return nil, err
	}

	if err := e.staker.Allocate(p.Tickets, probs, p.Bankroll, th); err != nil {
		return nil, fmt.Errorf("staking failed: %w", err)
	}

	e.dutching.Apply(p.Tickets)

	e.normalizer.Normalize(p.Tickets, p.Bankroll, th.StakeRoundTo)
	e.dropDust(p.Tickets, th.MinStake)

	recompute := func() PortfolioState {
		state, _, _ := e.aggregate(ctx, p.Tickets, probs)
		return state
	}

	var enforcerInfo models.EnforcerInfo
	if th.RiskOfRuinMax != nil {
		enforcerInfo = e.enforcer.Enforce(p.Tickets, p.Bankroll, *th.RiskOfRuinMax, th.StakeRoundTo, th.MinStake, recompute)
	} else {
		state := recompute()
		enforcerInfo = models.EnforcerInfo{
			InitialROR:      RiskOfRuin(state.EV, state.Variance, p.Bankroll),
			FinalROR:        RiskOfRuin(state.EV, state.Variance, p.Bankroll),
			ScaleApplied:    1.0,
			InitialEV:       state.EV,
			FinalEV:         state.EV,
			InitialVariance: state.Variance,
			FinalVariance:   state.Variance,
			InitialStake:    state.StakeTotal,
			FinalStake:      state.StakeTotal,
			Converged:       true,
		}
	}

	state, ticketMetrics, varianceNaive := e.aggregate(ctx, p.Tickets, probs)
	portfolioMetrics := e.portfolioMetrics(p, probs, state, varianceNaive)

	decision := e.gate.Decide(portfolioMetrics, th, p.Bankroll, p.HasCombos())

	e.observe(decision, portfolioMetrics, enforcerInfo)
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	e.logger.WithFields(logrus.Fields{
		"accepted":     decision.Accepted,
		"reasons":      decision.Reasons,
		"stake_total":  portfolioMetrics.StakeTotal,
		"ev_total":     portfolioMetrics.EVTotal,
		"risk_of_ruin": portfolioMetrics.RiskOfRuin,
		"duration":     time.Since(start).String(),
	}).Info("Portfolio evaluated")

	return &models.EvaluationResult{
		Decision:      decision,
		Metrics:       portfolioMetrics,
		Enforcer:      enforcerInfo,
		TicketMetrics: ticketMetrics,
	}, nil
}

// resolveAll fills the probability map for every ticket. Tickets with
// invalid odds are excluded (zero probability, zero stake) as contained
// per-ticket anomalies; missing or malformed probability sources are
// structural and abort the run.
func (e *Engine) resolveAll(ctx context.Context, tickets []*models.Ticket) (map[string]float64, error) {
	probs := make(map[string]float64, len(tickets))
	for _, t := range tickets {
		if !t.HasValidOdds() {
			e.logger.WithFields(logrus.Fields{
				"ticket_id": t.ID,
				"odds":      t.Odds,
			}).Warn("Ticket excluded for invalid odds")
			t.SetStake(0)
			probs[t.ID] = 0
			continue
		}

		p, err := e.resolver.Resolve(ctx, t)
		if err != nil {
			return nil, err
		}
		probs[t.ID] = p
	}
	return probs, nil
}

func (e *Engine) dropDust(tickets []*models.Ticket, minStake float64) {
	for _, t := range tickets {
		if t.HasStake() && t.StakeValue() > 0 && t.StakeValue() < minStake {
			t.SetStake(0)
		}
	}
}

// aggregate recomputes per-ticket metrics and the covariance-adjusted
// portfolio state from current stakes.
func (e *Engine) aggregate(ctx context.Context, tickets []*models.Ticket, probs map[string]float64) (PortfolioState, map[string]*models.TicketMetrics, float64) {
	ticketMetrics := make(map[string]*models.TicketMetrics, len(tickets))
	evs := make(map[string]float64, len(tickets))

	evTotal := 0.0
	varianceNaive := 0.0
	stakeTotal := 0.0

	for _, t := range tickets {
		tm := &models.TicketMetrics{TicketID: t.ID, Probability: probs[t.ID], CLV: t.CLV()}
		ticketMetrics[t.ID] = tm

		s := t.StakeValue()
		if s == 0 {
			continue
		}
		p := probs[t.ID]

		win := s * (t.Odds - 1.0)
		ev := p*win - (1.0-p)*s
		variance := p*win*win + (1.0-p)*s*s - ev*ev

		tm.EV = ev
		tm.Variance = variance
		tm.ROI = ev / s

		evs[t.ID] = ev
		evTotal += ev
		varianceNaive += variance
		stakeTotal += s
	}

	adjustment, _ := e.covariance.Adjust(ctx, tickets, probs, evs)
	varianceTotal := varianceNaive + adjustment
	if varianceTotal < 0 {
		varianceTotal = 0
	}

	return PortfolioState{EV: evTotal, Variance: varianceTotal, StakeTotal: stakeTotal}, ticketMetrics, varianceNaive
}

func (e *Engine) portfolioMetrics(p *models.Portfolio, probs map[string]float64, state PortfolioState, varianceNaive float64) models.PortfolioMetrics {
	m := models.PortfolioMetrics{
		StakeTotal:    state.StakeTotal,
		EVTotal:       state.EV,
		VarianceNaive: varianceNaive,
		VarianceTotal: state.Variance,
		EVRatio:       state.EV / p.Bankroll,
		RiskOfRuin:    RiskOfRuin(state.EV, state.Variance, p.Bankroll),
	}

	if state.StakeTotal > 0 {
		m.ROITotal = state.EV / state.StakeTotal
	}

	active := 0
	comboPayout := 0.0
	for _, t := range p.Tickets {
		if t.StakeValue() == 0 {
			continue
		}
		active++
		if t.IsCombo() {
			comboPayout += probs[t.ID] * t.StakeValue() * t.Odds
		}
	}
	m.ActiveTickets = active
	m.ExpectedCombinedPayout = comboPayout

	return m
}

func (e *Engine) observe(decision models.Decision, m models.PortfolioMetrics, info models.EnforcerInfo) {
	metrics.PortfoliosEvaluatedTotal.Inc()
	if decision.Accepted {
		metrics.PortfoliosAcceptedTotal.Inc()
	} else {
		metrics.PortfoliosAbstainedTotal.Inc()
		for _, reason := range decision.Reasons {
			gate := reason
			if idx := strings.IndexByte(reason, ' '); idx > 0 {
				gate = reason[:idx]
			}
			metrics.GateFailuresTotal.WithLabelValues(gate).Inc()
		}
	}

	metrics.StakeTotal.Set(m.StakeTotal)
	metrics.PortfolioRiskOfRuin.Set(m.RiskOfRuin)
	metrics.EnforcerIterations.Observe(float64(info.Iterations))

	if _, _, ratio := e.resolver.Stats(); ratio > 0 {
		metrics.ProbabilityCacheHitRatio.Set(ratio)
	}
}
