package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.ApiService/health"
	metrics "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Metrics"
)

// HealthController serves liveness, readiness and metrics
type HealthController struct {
	checker *health.HealthChecker
	metrics *metrics.Metrics
}

// NewHealthController creates a new health controller
func NewHealthController(checker *health.HealthChecker, m *metrics.Metrics) *HealthController {
	return &HealthController{checker: checker, metrics: m}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
	if c.metrics != nil {
		router.GET("/metrics", c.metrics.Handler())
	}
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	status, ok := c.checker.GetHealthStatus(checkCtx)
	if !ok {
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
