package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.ApiService/controllers"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.ApiService/middleware"
	container "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Container"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info().Msg("Starting API Service")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeStore(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize reading store")
	}

	readingService, err := ctr.GetReadingService()
	if err != nil {
		logger.FatalWithError(err, "Failed to get reading service")
	}

	config := ctr.GetConfig()
	mx := ctr.GetMetrics()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(mx.Middleware())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	var writeGuards []gin.HandlerFunc
	if config.Ingest.RateLimitRPS > 0 {
		writeGuards = append(writeGuards, middleware.RateLimitMiddleware(config.Ingest.RateLimitRPS))
		logger.Info().Int("rps", config.Ingest.RateLimitRPS).Msg("Write rate limiting enabled")
	}
	if config.Ingest.WriteToken != "" {
		writeGuards = append(writeGuards, middleware.WriteTokenMiddleware(config.Ingest.WriteToken))
		logger.Info().Msg("Bearer token required on write routes")
	}

	readingController := controllers.NewReadingController(readingService, logger, writeGuards...)
	healthController := controllers.NewHealthController(ctr.GetHealthChecker(), mx)

	readingController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	port := config.Server.Port

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("port", port).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info().Msg("API service running... press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
