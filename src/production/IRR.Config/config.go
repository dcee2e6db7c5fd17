package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the API service configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Read cache configuration
	Cache CacheConfig `json:"cache"`

	// InfluxDB mirror configuration
	Influx InfluxConfig `json:"influx"`

	// Write protection for the ingestion endpoint
	Ingest IngestConfig `json:"ingest"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig holds document store configuration
type DatabaseConfig struct {
	Driver         string        `json:"driver"` // mongo or memory
	URI            string        `json:"uri"`
	DBName         string        `json:"db_name"`
	Collection     string        `json:"collection"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	EnsureIndexes  bool          `json:"ensure_indexes"`
}

// CacheConfig holds the Redis list cache configuration. An empty Addr disables it.
type CacheConfig struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	TTL      time.Duration `json:"ttl"`
	Key      string        `json:"key"`
}

// InfluxConfig holds the InfluxDB mirror configuration. An empty URL disables it.
type InfluxConfig struct {
	URL         string `json:"url"`
	Token       string `json:"token"`
	Org         string `json:"org"`
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement"`
}

// IngestConfig holds limits applied to POST /reading
type IngestConfig struct {
	RateLimitRPS int    `json:"rate_limit_rps"` // 0 disables rate limiting
	WriteToken   string `json:"-"`              // empty disables bearer auth on writes
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ErrorTopic  string        `json:"error_topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
	QueueSize   int           `json:"queue_size"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout, stderr, or file path
	EnableCaller bool   `json:"enable_caller"`
	MaxSizeMB    int    `json:"max_size_mb"`
	MaxBackups   int    `json:"max_backups"`
	MaxAgeDays   int    `json:"max_age_days"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// BreakerConfig holds circuit breaker settings for outbound HTTP calls
type BreakerConfig struct {
	MaxFailures  int           `json:"max_failures"`
	OpenTimeout  time.Duration `json:"open_timeout"`
	CountsWindow time.Duration `json:"counts_window"`
}

// IngestorConfig holds configuration for the MQTT Ingestor service
type IngestorConfig struct {
	Server        ServerConfig  `json:"server"`
	MQTT          MQTTConfig    `json:"mqtt"`
	Logging       LoggingConfig `json:"logging"`
	Breaker       BreakerConfig `json:"breaker"`
	ApiServiceURL string        `json:"api_service_url"`
	ApiToken      string        `json:"-"`
	MaxRetries    int           `json:"max_retries"`
	RetryDelay    time.Duration `json:"retry_delay"`
	HTTPTimeout   time.Duration `json:"http_timeout"`
}

// DashboardConfig holds configuration for the dashboard service
type DashboardConfig struct {
	Server          ServerConfig  `json:"server"`
	Logging         LoggingConfig `json:"logging"`
	CORS            CORSConfig    `json:"cors"`
	Breaker         BreakerConfig `json:"breaker"`
	ApiServiceURL   string        `json:"api_service_url"`
	RefreshSchedule string        `json:"refresh_schedule"`
	FetchTimeout    time.Duration `json:"fetch_timeout"`
	PageSize        int           `json:"page_size"`
}

func loadDotEnv() {
	// A missing .env is fine: variables may be set directly in the environment.
	_ = godotenv.Load()
}

// LoadApiConfig loads configuration for the API service
func LoadApiConfig() (*Config, error) {
	loadDotEnv()

	config := &Config{
		Server: loadServerConfig("PORT", "3000"),
		Database: DatabaseConfig{
			Driver:         strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
			URI:            getEnv("MONGODB_URI", ""),
			DBName:         getEnv("DB_NAME", "irrigation"),
			Collection:     getEnv("COLL_NAME", "readings"),
			ConnectTimeout: getDuration("MONGODB_CONNECT_TIMEOUT", 20*time.Second),
			EnsureIndexes:  getBool("MONGODB_ENSURE_INDEXES", true),
		},
		Cache: CacheConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			TTL:      getDuration("REDIS_LIST_TTL", 30*time.Second),
			Key:      getEnv("REDIS_LIST_KEY", "readings:all"),
		},
		Influx: InfluxConfig{
			URL:         getEnv("INFLUX_URL", ""),
			Token:       getEnv("INFLUX_TOKEN", ""),
			Org:         getEnv("INFLUX_ORG", ""),
			Bucket:      getEnv("INFLUX_BUCKET", "irrigation"),
			Measurement: getEnv("INFLUX_MEASUREMENT", "soil_reading"),
		},
		Ingest: IngestConfig{
			RateLimitRPS: getInt("RATE_LIMIT_RPS", 0),
			WriteToken:   getEnv("WRITE_API_TOKEN", ""),
		},
		Logging: loadLoggingConfig(),
		CORS:    loadCORSConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadIngestorConfig loads configuration for the MQTT Ingestor service
func LoadIngestorConfig() (*IngestorConfig, error) {
	loadDotEnv()

	config := &IngestorConfig{
		Server: loadServerConfig("INGESTOR_PORT", "9003"),
		MQTT: MQTTConfig{
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			Topic:       getEnv("MQTT_TOPIC", "irrigation/+/reading"),
			ErrorTopic:  getEnv("MQTT_ERROR_TOPIC", "ingestor/errors"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "irr-ingestor"),
			SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
			QueueSize:   getInt("MQTT_QUEUE_SIZE", 1024),
		},
		Logging:       loadLoggingConfig(),
		Breaker:       loadBreakerConfig("API"),
		ApiServiceURL: getEnv("API_SERVICE_URL", "http://api-service:3000"),
		ApiToken:      getEnv("WRITE_API_TOKEN", ""),
		MaxRetries:    getInt("API_MAX_RETRIES", 3),
		RetryDelay:    getDuration("API_RETRY_DELAY", 1*time.Second),
		HTTPTimeout:   getDuration("API_HTTP_TIMEOUT", 10*time.Second),
	}

	if config.ApiServiceURL == "" {
		return nil, fmt.Errorf("API_SERVICE_URL is required")
	}
	if config.MQTT.BrokerHost == "" {
		return nil, fmt.Errorf("BROKER_HOST is required")
	}
	if config.MQTT.QueueSize <= 0 {
		return nil, fmt.Errorf("MQTT_QUEUE_SIZE must be positive")
	}

	return config, nil
}

// LoadDashboardConfig loads configuration for the dashboard service
func LoadDashboardConfig() (*DashboardConfig, error) {
	loadDotEnv()

	config := &DashboardConfig{
		Server:          loadServerConfig("DASHBOARD_PORT", "4200"),
		Logging:         loadLoggingConfig(),
		CORS:            loadCORSConfig(),
		Breaker:         loadBreakerConfig("DASHBOARD"),
		ApiServiceURL:   getEnv("API_SERVICE_URL", "http://localhost:3000"),
		RefreshSchedule: getEnv("DASHBOARD_REFRESH_SCHEDULE", "@every 30s"),
		FetchTimeout:    getDuration("DASHBOARD_FETCH_TIMEOUT", 10*time.Second),
		PageSize:        getInt("DASHBOARD_PAGE_SIZE", 10),
	}

	if config.ApiServiceURL == "" {
		return nil, fmt.Errorf("API_SERVICE_URL is required")
	}
	if config.PageSize <= 0 {
		return nil, fmt.Errorf("DASHBOARD_PAGE_SIZE must be positive")
	}

	return config, nil
}

// Validate validates the API configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mongo":
		if c.Database.URI == "" {
			return fmt.Errorf("MONGODB_URI is required")
		}
	case "memory":
		log.Println("WARNING: STORE_DRIVER=memory keeps readings in process memory only")
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Database.Driver)
	}
	if c.Influx.URL != "" && (c.Influx.Token == "" || c.Influx.Org == "") {
		return fmt.Errorf("INFLUX_TOKEN and INFLUX_ORG are required when INFLUX_URL is set")
	}
	if c.Ingest.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	return nil
}

// BrokerURL returns the broker URL, tcps when TLS is enabled
func (m MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if m.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.BrokerHost, m.BrokerPort)
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *IngestorConfig) GetMQTTBrokerURL() string {
	return c.MQTT.BrokerURL()
}

func loadServerConfig(portKey, defaultPort string) ServerConfig {
	return ServerConfig{
		Port:         getEnv(portKey, defaultPort),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "text"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		MaxSizeMB:    getInt("LOG_MAX_SIZE_MB", 10),
		MaxBackups:   getInt("LOG_MAX_BACKUPS", 5),
		MaxAgeDays:   getInt("LOG_MAX_AGE_DAYS", 30),
	}
}

func loadCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:4200"}),
		AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
		AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
		ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"}),
		AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
		MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
	}
}

func loadBreakerConfig(prefix string) BreakerConfig {
	return BreakerConfig{
		MaxFailures:  getInt(prefix+"_BREAKER_MAX_FAILURES", 5),
		OpenTimeout:  getDuration(prefix+"_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		CountsWindow: getDuration(prefix+"_BREAKER_WINDOW", 60*time.Second),
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
