// Package main provides the entry point for the long-running staking service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/stakecraft/internal/calibration"
	"github.com/yourusername/stakecraft/internal/config"
	"github.com/yourusername/stakecraft/internal/database"
	"github.com/yourusername/stakecraft/internal/engine"
	"github.com/yourusername/stakecraft/internal/health"
	applogger "github.com/yourusername/stakecraft/internal/logger"
	"github.com/yourusername/stakecraft/internal/metrics"
	"github.com/yourusername/stakecraft/internal/models"
	"github.com/yourusername/stakecraft/internal/repository"
	"github.com/yourusername/stakecraft/internal/scheduler"
	"github.com/yourusername/stakecraft/internal/stream"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
}

var rootCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the staking service",
	Long: `Daemon runs the staking engine as a long-lived service: an HTTP API for
portfolio evaluation, a websocket decision stream, scheduled calibration
refreshes, Prometheus metrics and health endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := applogger.NewLogger(cfg.App.LogLevel)
	logger.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
	}).Info("Stakecraft daemon starting")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	outcomeRepo := repository.NewPostgresOutcomeRepository(db)
	decisionRepo := repository.NewPostgresDecisionRepository(db)

	var remote *calibration.Client
	if cfg.Calibration.Remote.Enabled {
		remote = buildRemoteClient(cfg, logger)
	}

	store := buildStore(cfg, outcomeRepo, remote, logger)
	audit := applogger.NewAuditLogger(logger)

	refreshStart := time.Now()
	combinations, err := store.Refresh(ctx)
	audit.LogCalibrationRefresh(combinations, time.Since(refreshStart), err)
	if err != nil {
		return fmt.Errorf("failed to load calibration history: %w", err)
	}

	eng := buildEngine(cfg, store, logger)

	var broadcaster *stream.Broadcaster
	if cfg.Stream.Enabled {
		broadcaster = stream.NewBroadcaster(logger)
		defer broadcaster.Close()
	}

	svc := &service{
		cfg:          cfg,
		engine:       eng,
		decisionRepo: decisionRepo,
		outcomeRepo:  outcomeRepo,
		store:        store,
		broadcaster:  broadcaster,
		logger:       logger,
		audit:        audit,
	}

	apiServer := startAPIServer(cfg, svc, broadcaster, logger)
	defer shutdownHTTP(apiServer, logger)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg, logger)
		defer shutdownHTTP(metricsServer, logger)
	}

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Logger:      logger,
		DB:          db,
	})
	if remote != nil {
		healthServer.RegisterCheck("calibration", remote.HealthCheck)
	}
	if err := healthServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(store, logger)
		if err := sched.ScheduleCalibrationRefresh(cfg.Calibration.RefreshSchedule); err != nil {
			return fmt.Errorf("failed to schedule calibration refresh: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	healthServer.SetReady(true)
	logger.WithFields(logrus.Fields{
		"api_port":        cfg.Stream.Port,
		"metrics_enabled": cfg.Metrics.Enabled,
		"stream_enabled":  cfg.Stream.Enabled,
		"scheduler":       cfg.Scheduler.Enabled,
		"combinations":    combinations,
	}).Info("Daemon is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Shutdown signal received")
	case <-ctx.Done():
	}

	healthServer.SetReady(false)
	cancel()
	logger.Info("Daemon shut down")
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(configFile)
	if err != nil {
		return nil, err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return nil, fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(context.Background(), cfg, region, secretName); err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildRemoteClient(cfg *config.Config, logger *logrus.Logger) *calibration.Client {
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
	return calibration.NewClient(clientCfg, logger)
}

func buildStore(cfg *config.Config, source calibration.OutcomeSource, remote *calibration.Client, logger *logrus.Logger) *calibration.Store {
	storeCfg := calibration.DefaultStoreConfig()
	if cfg.Calibration.Smoothing > 0 {
		storeCfg.Smoothing = cfg.Calibration.Smoothing
	}
	storeCfg.CacheTTL = cfg.CalibrationCacheTTL()
	storeCfg.CacheSize = cfg.Calibration.CacheMaxSize

	var provider calibration.JointProvider
	if remote != nil {
		provider = remote
	}
	return calibration.NewStore(storeCfg, source, provider, logger)
}

func buildEngine(cfg *config.Config, store *calibration.Store, logger *logrus.Logger) *engine.Engine {
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

// service carries the dependencies the HTTP handlers need.
type service struct {
	cfg          *config.Config
	engine       *engine.Engine
	decisionRepo repository.DecisionRepository
	outcomeRepo  repository.OutcomeRepository
	store        *calibration.Store
	broadcaster  *stream.Broadcaster
	logger       *logrus.Logger
	audit        *applogger.AuditLogger
}

func startAPIServer(cfg *config.Config, svc *service, broadcaster *stream.Broadcaster, logger *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/evaluate", svc.handleEvaluate)
	mux.HandleFunc("/api/v1/decisions", svc.handleRecentDecisions)
	mux.HandleFunc("/api/v1/decisions/", svc.handleDecisionByID)
	mux.HandleFunc("/api/v1/outcomes", svc.handleRecordOutcomes)
	if broadcaster != nil {
		mux.Handle("/ws", broadcaster)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Stream.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Stream.Port).Info("API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("API server error")
		}
	}()

	return server
}

func startMetricsServer(cfg *config.Config, logger *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port": cfg.Metrics.Port,
			"path": cfg.Metrics.Path,
		}).Info("Metrics server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server error")
		}
	}()

	return server
}

func shutdownHTTP(server *http.Server, logger *logrus.Logger) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown error")
	}
}

// evaluateRequest is the API shape of a candidate portfolio. Bankroll falls
// back to the configured default when omitted.
type evaluateRequest struct {
	Tickets  []*models.Ticket `json:"tickets"`
	Bankroll float64          `json:"bankroll,omitempty"`
}

func (s *service) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Tickets) == 0 {
		http.Error(w, "portfolio contains no tickets", http.StatusBadRequest)
		return
	}

	roll := s.cfg.Engine.Bankroll
	if req.Bankroll > 0 {
		roll = req.Bankroll
	}
	portfolio := &models.Portfolio{
		Tickets:    req.Tickets,
		Bankroll:   roll,
		Thresholds: s.cfg.Thresholds(),
	}

	result, err := s.engine.Evaluate(r.Context(), portfolio)
	if err != nil {
		s.logger.WithError(err).Warn("Evaluation request failed")
		status := http.StatusUnprocessableEntity
		if errors.Is(err, models.ErrProbabilityUnavailable) || errors.Is(err, models.ErrInvalidProbability) || errors.Is(err, models.ErrBudgetInvalid) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	if s.cfg.Features.PersistDecisions {
		if _, err := s.decisionRepo.Save(r.Context(), portfolio, result); err != nil {
			s.logger.WithError(err).Error("Failed to persist decision")
			http.Error(w, "failed to persist decision", http.StatusInternalServerError)
			return
		}
	}

	s.audit.LogDecision(
		result.Decision.ID.String(),
		result.Decision.Accepted,
		result.Decision.Reasons,
		result.Metrics.StakeTotal,
		result.Metrics.EVTotal,
		result.Metrics.RiskOfRuin,
		result.Decision.CreatedAt,
	)

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(result)
	}

	writeJSON(w, http.StatusOK, struct {
		Result  *models.EvaluationResult `json:"result"`
		Tickets []*models.Ticket         `json:"tickets"`
	}{Result: result, Tickets: portfolio.Tickets})
}

func (s *service) handleRecentDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "limit must be an integer in [1,500]", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.decisionRepo.GetRecent(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load recent decisions")
		http.Error(w, "failed to load decisions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *service) handleDecisionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(r.URL.Path[len("/api/v1/decisions/"):])
	if err != nil {
		http.Error(w, "invalid decision id", http.StatusBadRequest)
		return
	}

	record, err := s.decisionRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "decision not found", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).Error("Failed to load decision")
		http.Error(w, "failed to load decision", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleRecordOutcomes ingests settled outcomes so future calibration
// refreshes pick them up; it also folds them into the live store.
func (s *service) handleRecordOutcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var outcomes []calibration.LegOutcome
	if err := json.NewDecoder(r.Body).Decode(&outcomes); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(outcomes) == 0 {
		http.Error(w, "no outcomes supplied", http.StatusBadRequest)
		return
	}

	if err := s.outcomeRepo.InsertBatch(r.Context(), outcomes); err != nil {
		s.logger.WithError(err).Error("Failed to persist outcomes")
		http.Error(w, "failed to persist outcomes", http.StatusInternalServerError)
		return
	}
	for _, outcome := range outcomes {
		s.store.Record(outcome)
	}

	writeJSON(w, http.StatusAccepted, map[string]int{"recorded": len(outcomes)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
