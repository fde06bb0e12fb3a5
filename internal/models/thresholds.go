package models

// Thresholds holds the profitability and risk gates for a portfolio run.
// Supplied by configuration, immutable during a run. Optional caps are
// pointers; nil means the gate is not enforced.
type Thresholds struct {
	EVRatioMin        float64  `mapstructure:"ev_ratio_min" json:"ev_ratio_min" validate:"gte=0"`
	ROIMin            float64  `mapstructure:"roi_min" json:"roi_min" validate:"gte=0"`
	KellyCap          float64  `mapstructure:"kelly_cap" json:"kelly_cap" validate:"required,gt=0,lte=1"`
	MinStake          float64  `mapstructure:"min_stake" json:"min_stake" validate:"gte=0"`
	StakeRoundTo      float64  `mapstructure:"stake_round_to" json:"stake_round_to" validate:"gte=0"`
	VarianceCap       *float64 `mapstructure:"variance_cap" json:"variance_cap,omitempty" validate:"omitempty,gt=0"`
	RiskOfRuinMax     *float64 `mapstructure:"risk_of_ruin_max" json:"risk_of_ruin_max,omitempty" validate:"omitempty,gt=0,lt=1"`
	MinCombinedPayout float64  `mapstructure:"min_combined_payout" json:"min_combined_payout" validate:"gte=0"`
}

// DefaultThresholds returns conservative defaults used when no configuration
// is supplied (CLI one-shot runs).
func DefaultThresholds() Thresholds {
	rorMax := 0.05
	return Thresholds{
		EVRatioMin:        0.01,
		ROIMin:            0.02,
		KellyCap:          0.6,
		MinStake:          0.10,
		StakeRoundTo:      0.10,
		RiskOfRuinMax:     &rorMax,
		MinCombinedPayout: 0,
	}
}
