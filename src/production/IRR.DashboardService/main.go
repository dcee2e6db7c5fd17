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
	apicontrollers "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.ApiService/controllers"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.ApiService/middleware"
	container "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Container"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.DashboardService/controllers"
)

func main() {
	ctr, err := container.NewDashboardContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	mx := ctr.GetMetrics()
	logger.Info().Str("api", config.ApiServiceURL).Msg("Starting Dashboard Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresher := ctr.InitializeRefresh()
	if err := refresher.Start(ctx, config.RefreshSchedule); err != nil {
		logger.FatalWithError(err, "Failed to schedule dashboard refresh")
	}
	ctr.AddCleanupFunc(func() error {
		refresher.Stop()
		return nil
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(mx.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}))

	controllers.NewDashboardController(ctr.GetSnapshotStore(), refresher, config.PageSize, logger).RegisterRoutes(router)
	apicontrollers.NewHealthController(ctr.GetHealthChecker(), mx).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + config.Server.Port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("port", config.Server.Port).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
