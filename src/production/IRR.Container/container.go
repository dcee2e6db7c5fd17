package container

import (
	"context"
	"fmt"
	"sync"

	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.ApiService/health"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config/circuitbreaker"
	dashclient "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Dashboard/client"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Dashboard/refresh"
	ingestion "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Ingestion"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	metrics "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Metrics"
	mirror "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Mirror"
	implementation "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container manages dependencies and their lifecycle
type Container struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
	checker *health.HealthChecker

	// Mutex for thread-safe access
	mu sync.RWMutex

	// Cleanup functions, run in reverse order on Shutdown
	cleanupFuncs []func() error
}

// ApiContainer manages dependencies for the API service
type ApiContainer struct {
	*Container
	config *config.Config

	mongoClient *mongo.Client
	repo        interfaces.ReadingRepository
	mirror      mirror.ReadingMirror
	service     *ingestion.ReadingService
}

// IngestorContainer manages dependencies for the MQTT Ingestor service
type IngestorContainer struct {
	*Container
	config *config.IngestorConfig
}

// DashboardContainer manages dependencies for the dashboard service
type DashboardContainer struct {
	*Container
	config *config.DashboardConfig

	client    *dashclient.ReadingsClient
	store     *refresh.Store
	refresher *refresh.Refresher
}

func newContainer(log *logger.Logger, service string) *Container {
	return &Container{
		logger:  log.WithService(service),
		metrics: metrics.New(service),
		checker: health.NewHealthChecker(),
	}
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*ApiContainer, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}
	return NewApiContainerWithConfig(cfg, logger.NewLogger(&cfg.Logging)), nil
}

// NewApiContainerWithConfig builds the container from an already loaded configuration.
func NewApiContainerWithConfig(cfg *config.Config, log *logger.Logger) *ApiContainer {
	return &ApiContainer{Container: newContainer(log, "api"), config: cfg}
}

// NewIngestorContainer creates a new container for the MQTT Ingestor service
func NewIngestorContainer() (*IngestorContainer, error) {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}
	return &IngestorContainer{
		Container: newContainer(logger.NewLogger(&cfg.Logging), "ingestor"),
		config:    cfg,
	}, nil
}

// NewDashboardContainer creates a new container for the dashboard service
func NewDashboardContainer() (*DashboardContainer, error) {
	cfg, err := config.LoadDashboardConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard configuration: %w", err)
	}
	return NewDashboardContainerWithConfig(cfg, logger.NewLogger(&cfg.Logging)), nil
}

// NewDashboardContainerWithConfig builds the container from an already loaded configuration.
func NewDashboardContainerWithConfig(cfg *config.DashboardConfig, log *logger.Logger) *DashboardContainer {
	return &DashboardContainer{Container: newContainer(log, "dashboard"), config: cfg}
}

// GetConfig returns the configuration
func (c *ApiContainer) GetConfig() *config.Config {
	return c.config
}

// GetConfig returns the ingestor configuration
func (c *IngestorContainer) GetConfig() *config.IngestorConfig {
	return c.config
}

// GetConfig returns the dashboard configuration
func (c *DashboardContainer) GetConfig() *config.DashboardConfig {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetMetrics returns the service's Prometheus collectors
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// GetHealthChecker returns the health checker
func (c *Container) GetHealthChecker() *health.HealthChecker {
	return c.checker
}

// InitializeStore connects the configured reading store, the optional Redis
// cache and the optional Influx mirror.
func (c *ApiContainer) InitializeStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repo != nil {
		return nil
	}

	var repo interfaces.ReadingRepository
	switch c.config.Database.Driver {
	case "memory":
		repo = implementation.NewMemoryReadingRepository()
		c.logger.Warn().Msg("Using in-memory reading store; data is lost on restart")
	default:
		client, err := health.ConnectMongoWithTimeout(&c.config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.mongoClient = client
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			return client.Disconnect(context.Background())
		})

		mongoRepo := implementation.NewMongoReadingRepository(health.GetCollection(client, &c.config.Database))
		if c.config.Database.EnsureIndexes {
			if err := mongoRepo.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("failed to create indexes: %w", err)
			}
		}
		repo = mongoRepo
		c.logger.Info().
			Str("db", c.config.Database.DBName).
			Str("collection", c.config.Database.Collection).
			Msg("Connected to MongoDB")
	}
	c.checker.AddCheck("store", repo.Ping)

	if c.config.Cache.Addr != "" {
		rdb, err := implementation.NewRedisConnection(&c.config.Cache)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.cleanupFuncs = append(c.cleanupFuncs, rdb.Close)
		c.checker.AddCheck("cache", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		repo = implementation.NewCachedReadingRepository(repo,
			implementation.NewRedisListCache(rdb), c.config.Cache.Key, c.config.Cache.TTL, c.logger)
		c.logger.Info().Str("addr", c.config.Cache.Addr).Msg("Reading list cache enabled")
	}

	if c.config.Influx.URL != "" {
		m, cleanup := mirror.NewInfluxMirror(&c.config.Influx, c.logger)
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			cleanup()
			return nil
		})
		c.mirror = m
		c.logger.Info().Str("url", c.config.Influx.URL).Msg("InfluxDB mirror enabled")
	}

	c.repo = repo
	c.service = ingestion.NewReadingService(repo, c.mirror, c.metrics, c.logger)
	return nil
}

// GetReadingService returns the reading service. InitializeStore must have succeeded.
func (c *ApiContainer) GetReadingService() (*ingestion.ReadingService, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.service == nil {
		return nil, fmt.Errorf("reading store not initialized")
	}
	return c.service, nil
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info().Msg("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info().Msg("Container shutdown complete")
	return nil
}

// InitializeRefresh wires the upstream client, the snapshot store and the
// refresher. It does not start the schedule.
func (c *DashboardContainer) InitializeRefresh() *refresh.Refresher {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refresher != nil {
		return c.refresher
	}

	cb := circuitbreaker.New("api-readings", c.config.Breaker, c.logger)
	c.client = dashclient.NewReadingsClient(c.config.ApiServiceURL, c.config.FetchTimeout, cb)
	c.store = refresh.NewStore()
	c.refresher = refresh.NewRefresher(c.client, c.store, c.metrics, c.config.FetchTimeout, c.logger)

	c.checker.AddCheck("upstream", func(ctx context.Context) error {
		if state := c.client.BreakerState(); state == "open" {
			return fmt.Errorf("circuit breaker %s", state)
		}
		return nil
	})
	c.checker.AddCheck("snapshot", func(ctx context.Context) error {
		if _, ok := c.store.Snapshot(); !ok {
			if err := c.store.LastError(); err != nil {
				return fmt.Errorf("no snapshot loaded: %w", err)
			}
			return fmt.Errorf("no snapshot loaded")
		}
		return nil
	})
	return c.refresher
}

// GetSnapshotStore returns the snapshot store. InitializeRefresh must have run.
func (c *DashboardContainer) GetSnapshotStore() *refresh.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}
