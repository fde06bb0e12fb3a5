package calibration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/stakecraft/internal/models"
)

// ClientConfig configures the remote calibration client
type ClientConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimitRPS float64
}

// DefaultClientConfig returns recommended defaults
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:      baseURL,
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		RateLimitRPS: 5.0,
	}
}

// Client fetches joint probabilities from a remote calibration service over
// HTTP, with retries and client-side rate limiting.
type Client struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
	logger  *logrus.Logger
}

// NewClient creates a remote calibration client
func NewClient(cfg ClientConfig, logger *logrus.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil

	return &Client{
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

type jointRequest struct {
	Legs []string `json:"legs"`
}

type jointResponse struct {
	Probability float64 `json:"probability"`
	SampleSize  int     `json:"sample_size"`
}

// JointProbability fetches the joint win probability for a leg set.
func (c *Client) JointProbability(ctx context.Context, legs []string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(jointRequest{Legs: legs})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/probabilities/joint", body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calibration service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("combination unknown to calibration service: %w", models.ErrProbabilityUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("calibration request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var jr jointResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if jr.Probability < 0 || jr.Probability > 1 {
		return 0, fmt.Errorf("calibration service returned %f: %w", jr.Probability, models.ErrInvalidProbability)
	}

	c.logger.WithFields(logrus.Fields{
		"legs":        len(legs),
		"probability": jr.Probability,
		"sample_size": jr.SampleSize,
		"duration":    time.Since(start).String(),
	}).Debug("Remote joint probability fetched")

	return jr.Probability, nil
}

// HealthCheck checks calibration service health
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calibration service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("calibration service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}
