package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"opsauth/internal/domain/auth"

	"github.com/rs/zerolog/log"
)

const healthyStatus = "healthy"

// Config configures the dependent backend client
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// HealthClient checks the dependent backend's /health endpoint
type HealthClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ auth.HealthChecker = (*HealthClient)(nil)

// healthResponse is the body returned by the backend's /health endpoint
type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewHealthClient creates a health client for the backend at cfg.BaseURL
func NewHealthClient(cfg Config) (*HealthClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HealthClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}, nil
}

// CheckHealth calls GET {base}/health. The backend is healthy only when it reports status "healthy".
// Transport and decoding failures are returned as errors.
func (c *HealthClient) CheckHealth(ctx context.Context) (*auth.HealthStatus, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend health request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	latency := time.Since(start)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		log.Warn().Int("status", resp.StatusCode).Dur("latency", latency).Msg("backend health endpoint returned non-200")
		return &auth.HealthStatus{
			Healthy:   false,
			Status:    fmt.Sprintf("http_%d", resp.StatusCode),
			CheckedAt: start,
			Latency:   latency,
		}, nil
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode backend health response: %w", err)
	}

	status := &auth.HealthStatus{
		Healthy:   body.Status == healthyStatus,
		Status:    body.Status,
		CheckedAt: start,
		Latency:   latency,
	}
	if !status.Healthy {
		status.Error = body.Message
	}
	log.Debug().Str("status", body.Status).Dur("latency", latency).Msg("backend health checked")
	return status, nil
}
