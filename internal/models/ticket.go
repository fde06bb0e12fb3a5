package models

// TicketKind distinguishes single-runner bets from combined (exotic) bets
type TicketKind string

const (
	TicketKindSingle TicketKind = "single"
	TicketKindCombo  TicketKind = "combo"
)

// Ticket represents the atomic wagering unit. Odds, probability sources and
// grouping are inputs supplied by the ticket builder; Stake is the output
// field populated by the staking pipeline. Derived per-ticket metrics live in
// TicketMetrics, not here.
type Ticket struct {
	ID          string     `db:"id" json:"id" validate:"required"`
	Kind        TicketKind `db:"kind" json:"kind" validate:"required,oneof=single combo"`
	Odds        float64    `db:"odds" json:"odds" validate:"required,gt=1"`
	Probability *float64   `db:"probability" json:"probability,omitempty" validate:"omitempty,gt=0,lt=1"`
	Legs        []string   `db:"legs" json:"legs,omitempty"`
	RunnerID    string     `db:"runner_id" json:"runner_id,omitempty"`
	RaceID      string     `db:"race_id" json:"race_id,omitempty"`
	GroupKey    string     `db:"group_key" json:"group_key,omitempty"`
	Stake       *float64   `db:"stake" json:"stake,omitempty"`
	ClosingOdds *float64   `db:"closing_odds" json:"closing_odds,omitempty"`
}

// IsCombo reports whether the ticket is a combined/exotic bet
func (t *Ticket) IsCombo() bool {
	return t.Kind == TicketKindCombo || len(t.Legs) > 0
}

// HasStake reports whether a stake has been assigned
func (t *Ticket) HasStake() bool {
	return t.Stake != nil
}

// StakeValue returns the assigned stake, or zero when unset
func (t *Ticket) StakeValue() float64 {
	if t.Stake == nil {
		return 0
	}
	return *t.Stake
}

// SetStake assigns the stake amount in place
func (t *Ticket) SetStake(amount float64) {
	t.Stake = &amount
}

// ClearStake removes the assigned stake
func (t *Ticket) ClearStake() {
	t.Stake = nil
}

// HasValidOdds reports whether the decimal odds can carry a stake
func (t *Ticket) HasValidOdds() bool {
	return t.Odds > 1.0
}

// CLV returns the closing-line-value of the ticket: the relative difference
// between the odds taken and the odds at market close. Zero when no closing
// odds were recorded. Reporting metric only, never a control input.
func (t *Ticket) CLV() float64 {
	if t.ClosingOdds == nil || *t.ClosingOdds <= 1.0 {
		return 0
	}
	return t.Odds/(*t.ClosingOdds) - 1.0
}

// Portfolio is the full set of candidate tickets plus the bankroll they are
// sized against and the profitability gates they must clear.
type Portfolio struct {
	Tickets    []*Ticket  `json:"tickets" validate:"required,dive"`
	Bankroll   float64    `json:"bankroll" validate:"required,gt=0"`
	Thresholds Thresholds `json:"thresholds"`
}

// StakeTotal returns the sum of assigned stakes across all tickets
func (p *Portfolio) StakeTotal() float64 {
	total := 0.0
	for _, t := range p.Tickets {
		total += t.StakeValue()
	}
	return total
}

// HasCombos reports whether the portfolio contains any combined bets
func (p *Portfolio) HasCombos() bool {
	for _, t := range p.Tickets {
		if t.IsCombo() {
			return true
		}
	}
	return false
}
