package models

import "errors"

// Custom errors
var (
	// ErrInvalidOdds is returned when decimal odds at or below 1.0 are
	// supplied where a stakeable price is required.
	ErrInvalidOdds = errors.New("invalid odds: must be greater than 1.0")

	// ErrInvalidProbability is returned for probabilities outside (0,1).
	ErrInvalidProbability = errors.New("invalid probability: must be strictly between 0 and 1")

	// ErrProbabilityUnavailable is returned when a ticket has no probability
	// source and the resolver is not in lenient mode.
	ErrProbabilityUnavailable = errors.New("no probability source available for ticket")

	// ErrBudgetInvalid is returned when the bankroll is not positive.
	ErrBudgetInvalid = errors.New("invalid budget: bankroll must be positive")

	// ErrConvergenceExhausted signals that the risk-of-ruin enforcer hit its
	// iteration bound before reaching the target. Warning-grade: the engine
	// still returns its best achieved state.
	ErrConvergenceExhausted = errors.New("risk-of-ruin enforcement did not converge within iteration bound")

	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = errors.New("record not found")
)
