package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", config.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, logger.NewNop())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	status := Status(cb)
	assert.Equal(t, "open", status["state"])
	assert.Equal(t, "test", status["name"])
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := New("test", config.BreakerConfig{MaxFailures: 1}, nil)
	res, err := cb.Execute(func() (interface{}, error) { return 7, nil })
	assert.NoError(t, err)
	assert.Equal(t, 7, res)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
