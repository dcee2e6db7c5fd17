package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config/circuitbreaker"
)

func newClient(url string, fails int) *ReadingsClient {
	cb := circuitbreaker.New("readings", config.BreakerConfig{MaxFailures: fails, OpenTimeout: time.Minute}, nil)
	return NewReadingsClient(url+"/", time.Second, cb)
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reading", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"_id":"a","humidity":40},{"_id":"b","humidity":41.25}]`))
	}))
	defer srv.Close()

	raws, err := newClient(srv.URL, 3).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "b", raws[1]["_id"])
}

func TestFetchAllNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"storage unavailable"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 3).FetchAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetchAllOpensBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(srv.URL, 2)
	for i := 0; i < 2; i++ {
		_, err := c.FetchAll(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.FetchAll(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker must not call upstream")
}

func TestFetchAllBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 3).FetchAll(context.Background())
	assert.Error(t, err)
}
