package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	container "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Container"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.IngestorService/client"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.IngestorService/ingestor"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewIngestorContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info().Msg("Starting MQTT Ingestor Service")

	config := ctr.GetConfig()
	apiClient := client.NewAPIClient(config, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ing := ingestor.New(config.MQTT, apiClient, ctr.GetMetrics(), logger)
	if err := ing.Start(ctx); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT ingestor")
	}
	defer ing.Stop()

	checker := ctr.GetHealthChecker()
	checker.AddCheck("mqtt", func(context.Context) error {
		if !ing.IsConnected() {
			return errors.New("disconnected")
		}
		return nil
	})
	checker.AddCheck("api_service", apiClient.Health)

	srv := &http.Server{
		Addr:         ":" + config.Server.Port,
		Handler:      healthRouter(ctr, ing, apiClient),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("port", config.Server.Port).Msg("Health server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start health server")
		}
	}()

	logger.Info().Msg("MQTT ingestor running... press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Health server forced to shutdown")
	}
}

func healthRouter(ctr *container.IngestorContainer, ing *ingestor.Ingestor, apiClient *client.APIClient) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status, ok := ctr.GetHealthChecker().GetHealthStatus(ctx)
		status["circuit_breaker"] = apiClient.GetCircuitBreakerStatus()
		status["queue_depth"] = ing.QueueDepth()

		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	router.GET("/metrics", ctr.GetMetrics().Handler())
	return router
}
