// Package config provides configuration management for the Stakecraft engine.
package config

import (
	"fmt"
	"time"

	"github.com/yourusername/stakecraft/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Engine      EngineConfig      `mapstructure:"engine" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Calibration CalibrationConfig `mapstructure:"calibration" validate:"required"`
	Metrics     MetricsConfig     `mapstructure:"metrics" validate:"required"`
	Reports     ReportsConfig     `mapstructure:"reports" validate:"required"`
	Stream      StreamConfig      `mapstructure:"stream" validate:"required"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler" validate:"required"`
	Features    FeaturesConfig    `mapstructure:"features"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// EngineConfig carries the staking thresholds plus resolver behaviour
type EngineConfig struct {
	Bankroll             float64  `mapstructure:"bankroll" validate:"required,gt=0"`
	KellyCap             float64  `mapstructure:"kelly_cap" validate:"required,gt=0,lte=1"`
	MinStake             float64  `mapstructure:"min_stake" validate:"gte=0"`
	StakeRoundTo         float64  `mapstructure:"stake_round_to" validate:"gte=0"`
	EVRatioMin           float64  `mapstructure:"ev_ratio_min" validate:"gte=0"`
	ROIMin               float64  `mapstructure:"roi_min" validate:"gte=0"`
	MinCombinedPayout    float64  `mapstructure:"min_combined_payout" validate:"gte=0"`
	VarianceCap          *float64 `mapstructure:"variance_cap" validate:"omitempty,gt=0"`
	RiskOfRuinMax        *float64 `mapstructure:"risk_of_ruin_max" validate:"omitempty,gt=0,lt=1"`
	LenientResolution    bool     `mapstructure:"lenient_resolution"`
	Strategy             string   `mapstructure:"strategy" validate:"required,oneof=kelly log_utility"`
	ProbabilityCacheTTL  int      `mapstructure:"probability_cache_ttl_seconds" validate:"required,gt=0"`
	ProbabilityCacheSize int      `mapstructure:"probability_cache_size" validate:"required,gt=0"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// CalibrationConfig represents the calibration store and its optional remote
// probability service
type CalibrationConfig struct {
	Smoothing       float64 `mapstructure:"smoothing" validate:"gte=0"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	CacheMaxSize    int     `mapstructure:"cache_max_size" validate:"required,gt=0"`
	RefreshSchedule string  `mapstructure:"refresh_schedule" validate:"required"`
	Remote          RemoteCalibrationConfig `mapstructure:"remote"`
}

// RemoteCalibrationConfig configures the HTTP calibration client
type RemoteCalibrationConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
	RetryAttempts  int    `mapstructure:"retry_attempts" validate:"gte=0"`
	RateLimitRPS   int    `mapstructure:"rate_limit_rps" validate:"omitempty,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// ReportsConfig controls decision report output
type ReportsConfig struct {
	OutputPath string `mapstructure:"output_path" validate:"required"`
	Format     string `mapstructure:"format" validate:"required,oneof=csv json both"`
}

// StreamConfig configures the websocket decision stream
type StreamConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// SchedulerConfig holds cron expressions for background jobs
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// FeaturesConfig represents feature flags
type FeaturesConfig struct {
	PersistDecisions     bool `mapstructure:"persist_decisions"`
	StreamEnabled        bool `mapstructure:"stream_enabled"`
	CovarianceAdjustment bool `mapstructure:"covariance_adjustment"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Thresholds converts the engine section into the runtime threshold set
func (c *Config) Thresholds() models.Thresholds {
	return models.Thresholds{
		EVRatioMin:        c.Engine.EVRatioMin,
		ROIMin:            c.Engine.ROIMin,
		KellyCap:          c.Engine.KellyCap,
		MinStake:          c.Engine.MinStake,
		StakeRoundTo:      c.Engine.StakeRoundTo,
		VarianceCap:       c.Engine.VarianceCap,
		RiskOfRuinMax:     c.Engine.RiskOfRuinMax,
		MinCombinedPayout: c.Engine.MinCombinedPayout,
	}
}

// ProbabilityCacheTTL returns the resolver cache TTL as a duration
func (c *Config) ProbabilityCacheTTL() time.Duration {
	return time.Duration(c.Engine.ProbabilityCacheTTL) * time.Second
}

// CalibrationCacheTTL returns the calibration cache TTL as a duration
func (c *Config) CalibrationCacheTTL() time.Duration {
	return time.Duration(c.Calibration.CacheTTLSeconds) * time.Second
}

// RemoteCalibrationTimeout returns the remote client timeout as a duration
func (c *Config) RemoteCalibrationTimeout() time.Duration {
	return time.Duration(c.Calibration.Remote.TimeoutSeconds) * time.Second
}
