// Package client reads the full reading list from the API service.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	view "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Dashboard/view"
)

const maxBodyBytes = 64 << 20

// ReadingsClient fetches readings through a circuit breaker. Calls are never
// retried; a failed load simply leaves the previous snapshot in place.
type ReadingsClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewReadingsClient(baseURL string, timeout time.Duration, breaker *gobreaker.CircuitBreaker) *ReadingsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReadingsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// FetchAll calls GET /reading and decodes the array.
func (c *ReadingsClient) FetchAll(ctx context.Context) ([]view.RawReading, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]view.RawReading), nil
}

// BreakerState reports the breaker's state name.
func (c *ReadingsClient) BreakerState() string {
	return c.breaker.State().String()
}

func (c *ReadingsClient) fetch(ctx context.Context) ([]view.RawReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reading", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "irr-dashboard-service")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readings: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return view.DecodeReadings(body)
}
