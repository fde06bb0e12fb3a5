// Package main provides the one-shot portfolio evaluation CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/stakecraft/internal/calibration"
	"github.com/yourusername/stakecraft/internal/config"
	"github.com/yourusername/stakecraft/internal/database"
	"github.com/yourusername/stakecraft/internal/engine"
	applogger "github.com/yourusername/stakecraft/internal/logger"
	"github.com/yourusername/stakecraft/internal/models"
	"github.com/yourusername/stakecraft/internal/report"
	"github.com/yourusername/stakecraft/internal/repository"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	inputFile  string
	bankroll   float64
	outputPath string
	persist    bool

	cfg    *config.Config
	logger *logrus.Logger
	audit  *applogger.AuditLogger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Path to tickets JSON file (required)")
	rootCmd.Flags().Float64VarP(&bankroll, "bankroll", "b", 0, "Override the configured bankroll")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Override the report output directory")
	rootCmd.Flags().BoolVar(&persist, "persist", false, "Persist the decision to the database")
	rootCmd.MarkFlagRequired("input")
}

var rootCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a ticket portfolio and produce a staking decision",
	Long: `Evaluate reads a candidate ticket portfolio from a JSON file, sizes stakes
through the staking pipeline and writes the accept/abstain decision with full
metrics to CSV/JSON reports.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = applogger.NewLogger(cfg.App.LogLevel)
		audit = applogger.NewAuditLogger(logger)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluation(cmd.Context())
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(context.Background(), cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	return config.Validate(cfg)
}

// portfolioInput is the on-disk shape of a candidate portfolio. Bankroll and
// thresholds are optional; missing values fall back to the configuration.
type portfolioInput struct {
	Tickets  []*models.Ticket `json:"tickets"`
	Bankroll float64          `json:"bankroll,omitempty"`
}

func loadPortfolio(path string) (*models.Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	var input portfolioInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse input file: %w", err)
	}
	if len(input.Tickets) == 0 {
		return nil, fmt.Errorf("input file %s contains no tickets", path)
	}

	roll := cfg.Engine.Bankroll
	if input.Bankroll > 0 {
		roll = input.Bankroll
	}
	if bankroll > 0 {
		roll = bankroll
	}

	return &models.Portfolio{
		Tickets:    input.Tickets,
		Bankroll:   roll,
		Thresholds: cfg.Thresholds(),
	}, nil
}

func runEvaluation(ctx context.Context) error {
	portfolio, err := loadPortfolio(inputFile)
	if err != nil {
		return err
	}

	needsDB := persist || cfg.Features.PersistDecisions
	var db *database.DB
	if needsDB {
		db, err = database.Initialize(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
	}

	store, err := buildCalibrationStore(ctx, db)
	if err != nil {
		return err
	}

	eng := buildEngine(store)

	result, err := eng.Evaluate(ctx, portfolio)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if result.Enforcer.ScaleApplied < 1.0 {
		audit.LogStakeScaling(
			result.Enforcer.ScaleApplied,
			result.Enforcer.Iterations,
			result.Enforcer.InitialROR,
			result.Enforcer.FinalROR,
			result.Enforcer.InitialStake,
			result.Enforcer.FinalStake,
			result.Enforcer.Converged,
		)
	}

	if needsDB {
		id, err := repository.NewPostgresDecisionRepository(db).Save(ctx, portfolio, result)
		if err != nil {
			return fmt.Errorf("failed to persist decision: %w", err)
		}
		logger.WithField("decision_id", id).Info("Decision persisted")
	}

	audit.LogDecision(
		result.Decision.ID.String(),
		result.Decision.Accepted,
		result.Decision.Reasons,
		result.Metrics.StakeTotal,
		result.Metrics.EVTotal,
		result.Metrics.RiskOfRuin,
		result.Decision.CreatedAt,
	)

	if err := writeReports(portfolio, result); err != nil {
		return err
	}

	printSummary(portfolio, result)
	return nil
}

func buildCalibrationStore(ctx context.Context, db *database.DB) (*calibration.Store, error) {
	storeCfg := calibration.DefaultStoreConfig()
	if cfg.Calibration.Smoothing > 0 {
		storeCfg.Smoothing = cfg.Calibration.Smoothing
	}
	storeCfg.CacheTTL = cfg.CalibrationCacheTTL()
	storeCfg.CacheSize = cfg.Calibration.CacheMaxSize

	var remote calibration.JointProvider
	if cfg.Calibration.Remote.Enabled {
		clientCfg := calibration.DefaultClientConfig(cfg.Calibration.Remote.URL)
		clientCfg.APIKey = cfg.Calibration.Remote.APIKey
		if cfg.Calibration.Remote.TimeoutSeconds > 0 {
			clientCfg.Timeout = cfg.RemoteCalibrationTimeout()
		}
		if cfg.Calibration.Remote.RetryAttempts > 0 {
			clientCfg.MaxRetries = cfg.Calibration.Remote.RetryAttempts
		}
		if cfg.Calibration.Remote.RateLimitRPS > 0 {
			clientCfg.RateLimitRPS = float64(cfg.Calibration.Remote.RateLimitRPS)
		}
		remote = calibration.NewClient(clientCfg, logger)
	}

	var source calibration.OutcomeSource
	if db != nil {
		source = repository.NewPostgresOutcomeRepository(db)
	}

	store := calibration.NewStore(storeCfg, source, remote, logger)
	if source != nil {
		if _, err := store.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("failed to load calibration history: %w", err)
		}
	}
	return store, nil
}

func buildEngine(store *calibration.Store) *engine.Engine {
	resolverCfg := engine.ResolverConfig{
		Lenient:      cfg.Engine.LenientResolution,
		CacheTTL:     cfg.ProbabilityCacheTTL(),
		CacheMaxSize: cfg.Engine.ProbabilityCacheSize,
	}

	opts := []engine.Option{}
	if cfg.Engine.Strategy == "log_utility" {
		opts = append(opts, engine.WithStaker(engine.NewLogUtilityOptimizer(logger)))
	}

	return engine.NewEngine(store.Probability, resolverCfg, logger, opts...)
}

func writeReports(portfolio *models.Portfolio, result *models.EvaluationResult) error {
	dir := cfg.Reports.OutputPath
	if outputPath != "" {
		dir = outputPath
	}
	writer := report.NewWriter(dir, logger)

	if cfg.Reports.Format == "csv" || cfg.Reports.Format == "both" {
		path, err := writer.WriteCSV(portfolio, result)
		if err != nil {
			return fmt.Errorf("failed to write CSV report: %w", err)
		}
		fmt.Printf("CSV report: %s\n", path)
	}
	if cfg.Reports.Format == "json" || cfg.Reports.Format == "both" {
		path, err := writer.WriteJSON(result)
		if err != nil {
			return fmt.Errorf("failed to write JSON report: %w", err)
		}
		fmt.Printf("JSON report: %s\n", path)
	}
	return nil
}

func printSummary(portfolio *models.Portfolio, result *models.EvaluationResult) {
	if result.Decision.Accepted {
		fmt.Printf("✓ Portfolio accepted\n")
	} else {
		fmt.Printf("❌ Portfolio abstained\n")
		for _, reason := range result.Decision.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
	}

	fmt.Printf("  Tickets:       %d (%d staked)\n", len(portfolio.Tickets), result.Metrics.ActiveTickets)
	fmt.Printf("  Stake total:   %.2f of bankroll %.2f\n", result.Metrics.StakeTotal, portfolio.Bankroll)
	fmt.Printf("  EV total:      %.4f (ratio %.4f, ROI %.4f)\n", result.Metrics.EVTotal, result.Metrics.EVRatio, result.Metrics.ROITotal)
	fmt.Printf("  Risk of ruin:  %.6f\n", result.Metrics.RiskOfRuin)
	if result.Enforcer.ScaleApplied < 1.0 {
		fmt.Printf("  Stakes scaled: x%.4f over %d iterations\n", result.Enforcer.ScaleApplied, result.Enforcer.Iterations)
	}
}
