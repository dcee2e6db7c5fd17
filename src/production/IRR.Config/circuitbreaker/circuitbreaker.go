package circuitbreaker

import (
	"github.com/sony/gobreaker"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
)

// New builds a breaker that opens after cfg.MaxFailures consecutive failures
// and probes again after cfg.OpenTimeout.
func New(name string, cfg config.BreakerConfig, log *logger.Logger) *gobreaker.CircuitBreaker {
	fails := cfg.MaxFailures
	if fails <= 0 {
		fails = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.CountsWindow,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log == nil {
				return
			}
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
}

// Status summarizes a breaker for health endpoints.
func Status(cb *gobreaker.CircuitBreaker) map[string]interface{} {
	counts := cb.Counts()
	return map[string]interface{}{
		"name":                 cb.Name(),
		"state":                cb.State().String(),
		"requests":             counts.Requests,
		"consecutive_failures": counts.ConsecutiveFailures,
	}
}
