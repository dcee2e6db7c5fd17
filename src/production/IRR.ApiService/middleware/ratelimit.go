package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiter struct {
	clients map[string]*rate.Limiter
	mu      sync.RWMutex
	rate    rate.Limit
	burst   int
}

func NewRateLimiter(rps int, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*rate.Limiter),
		rate:    rate.Limit(rps),
		burst:   burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.clients[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if limiter, exists = rl.clients[key]; !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.clients[key] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// prune drops limiters that have refilled completely.
func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, limiter := range rl.clients {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) cleanup(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for range ticker.C {
			rl.prune()
		}
	}()
}

// RateLimitMiddleware limits each client IP to rps requests per second with a
// burst of twice that.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	limiter := NewRateLimiter(rps, rps*2)
	limiter.cleanup(time.Hour)

	return func(c *gin.Context) {
		if !limiter.getLimiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
