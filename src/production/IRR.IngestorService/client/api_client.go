package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config/circuitbreaker"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	validation "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Validation"
)

// APIError is a non-2xx answer from the API Service.
type APIError struct {
	StatusCode int
	Message    string
	Violations []validation.FieldViolation
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Message)
}

// Permanent reports whether resending the same request cannot succeed.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// errorBody is the API's error response shape
type errorBody struct {
	Error      string                      `json:"error"`
	Violations []validation.FieldViolation `json:"violations"`
}

// APIClient handles communication with the API Service
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
	logger     *logger.Logger
}

// NewAPIClient creates a new API client
func NewAPIClient(cfg *config.IngestorConfig, log *logger.Logger) *APIClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &APIClient{
		baseURL:    strings.TrimRight(cfg.ApiServiceURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		token:      cfg.ApiToken,
		breaker:    circuitbreaker.New("api-service", cfg.Breaker, log),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     log.WithComponent("api-client"),
	}
}

// CreateReading posts one JSON object to POST /reading. Transport errors, 429
// and 5xx answers are retried with exponential backoff; other 4xx answers and
// an open breaker are returned at once.
func (c *APIClient) CreateReading(ctx context.Context, body []byte) error {
	attempt := 0
	operation := func() error {
		attempt++
		res, err := c.breaker.Execute(func() (interface{}, error) {
			err := c.postReading(ctx, body)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Permanent() {
				// a rejected payload says nothing about the API's health
				return apiErr, nil
			}
			return nil, err
		})
		if err == nil {
			if apiErr, ok := res.(*APIError); ok {
				return backoff.Permanent(apiErr)
			}
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("circuit breaker is open: %w", err))
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Forwarding reading failed")
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx)

	return backoff.Retry(operation, policy)
}

func (c *APIClient) postReading(ctx context.Context, body []byte) error {
	resp, err := c.makeRequest(ctx, http.MethodPost, "/reading", body)
	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		apiErr.Message = eb.Error
		apiErr.Violations = eb.Violations
	}
	return apiErr
}

// makeRequest makes an HTTP request to the API Service
func (c *APIClient) makeRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "irr-mqtt-ingestor")

	return c.httpClient.Do(req)
}

// Health checks if the API Service is alive
func (c *APIClient) Health(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/health/live", nil)
	if err != nil {
		return fmt.Errorf("failed to check API health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *APIClient) GetCircuitBreakerStatus() map[string]interface{} {
	return circuitbreaker.Status(c.breaker)
}
