package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
)

func newTestClient(url string, retries, fails int) *APIClient {
	cfg := &config.IngestorConfig{
		ApiServiceURL: url,
		ApiToken:      "secret",
		MaxRetries:    retries,
		RetryDelay:    time.Millisecond,
		HTTPTimeout:   time.Second,
		Breaker:       config.BreakerConfig{MaxFailures: fails, OpenTimeout: time.Minute},
	}
	return NewAPIClient(cfg, logger.NewNop())
}

func TestCreateReadingSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reading", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"humidity":42}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"x"}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL, 2, 5).CreateReading(context.Background(), []byte(`{"humidity":42}`)))
}

func TestCreateReadingRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL, 3, 10).CreateReading(context.Background(), []byte(`{}`)))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestCreateReadingGivesUpAfterMaxRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, 2, 10).CreateReading(context.Background(), []byte(`{}`))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestCreateReadingValidationIsPermanent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"validation failed","violations":[{"field":"humidity","message":"is required"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, 1)
	err := c.CreateReading(context.Background(), []byte(`{}`))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Permanent())
	assert.Equal(t, "validation failed", apiErr.Message)
	require.Len(t, apiErr.Violations, 1)
	assert.Equal(t, "humidity", apiErr.Violations[0].Field)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, "closed", c.GetCircuitBreakerStatus()["state"])
}

func TestCreateReadingStopsWhenBreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5, 2)
	err := c.CreateReading(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/live" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(srv.URL, 0, 1).Health(context.Background()))

	srv.Close()
	assert.Error(t, newTestClient(srv.URL, 0, 1).Health(context.Background()))
}
