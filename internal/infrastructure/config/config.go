package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Reconcile ReconcileConfig
	Cache     CacheConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ServerConfig represents daemon mode configuration
type ServerConfig struct {
	Host        string
	Port        int // Port for the gRPC health service
	MetricsPort int // Port for Prometheus metrics HTTP server
}

// ReconcileConfig represents sweep tuning
type ReconcileConfig struct {
	Concurrency  int           // Max in-flight verifications (and deletions) per relation type
	PageSize     int           // Relation records fetched per page
	CheckTimeout time.Duration // Upper bound on a single existence lookup
	DryRun       bool          // Report dangling records without deleting them
	CatalogPath  string        // Optional YAML catalog; empty means the built-in catalog
	Interval     time.Duration // Time between runs in daemon mode
}

// CacheConfig represents existence cache configuration
type CacheConfig struct {
	Enabled    bool
	MaxEntries int
	TTLMinutes int // Time-to-live for cached existence answers in minutes
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// MetricsConfig represents metrics export configuration
type MetricsConfig struct {
	PushgatewayURL string // Optional; when set, CLI runs push their metrics here
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL      string // Full connection string; takes precedence over the discrete fields
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root directory
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	// Set config file name based on environment
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Installed binaries run outside the source tree, so a missing project root is not an error
	if projectRoot, err := findProjectRoot(); err == nil {
		viper.AddConfigPath(projectRoot)
	}

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	setDefaults()

	return nil
}

func setDefaults() {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 50051)
	viper.SetDefault("METRICS_PORT", 9090)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "camarize")
	viper.SetDefault("DB_NAME", "camarize_dev")
	viper.SetDefault("DB_SSLMODE", "disable")

	// Reconcile defaults
	viper.SetDefault("RECONCILE_CONCURRENCY", 16)
	viper.SetDefault("RECONCILE_PAGE_SIZE", 500)
	viper.SetDefault("RECONCILE_CHECK_TIMEOUT", 5*time.Second)
	viper.SetDefault("RECONCILE_DRY_RUN", false)
	viper.SetDefault("RECONCILE_INTERVAL", time.Hour)

	// Cache defaults
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_MAX_ENTRIES", 50000)
	viper.SetDefault("CACHE_TTL_MINUTES", 5)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
}

// Load loads configuration from viper
func Load() (*Config, error) {
	dbURL := viper.GetString("DATABASE_URL")
	dbPassword := viper.GetString("DB_PASSWORD")
	if dbURL == "" && dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD or DATABASE_URL is required (set via environment variable or .env file)")
	}

	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			Port:        viper.GetInt("SERVER_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
		},
		Database: DatabaseConfig{
			URL:      dbURL,
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: dbPassword,
			Database: viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Reconcile: ReconcileConfig{
			Concurrency:  viper.GetInt("RECONCILE_CONCURRENCY"),
			PageSize:     viper.GetInt("RECONCILE_PAGE_SIZE"),
			CheckTimeout: viper.GetDuration("RECONCILE_CHECK_TIMEOUT"),
			DryRun:       viper.GetBool("RECONCILE_DRY_RUN"),
			CatalogPath:  viper.GetString("RECONCILE_CATALOG"),
			Interval:     viper.GetDuration("RECONCILE_INTERVAL"),
		},
		Cache: CacheConfig{
			Enabled:    viper.GetBool("CACHE_ENABLED"),
			MaxEntries: viper.GetInt("CACHE_MAX_ENTRIES"),
			TTLMinutes: viper.GetInt("CACHE_TTL_MINUTES"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: viper.GetString("METRICS_PUSHGATEWAY_URL"),
		},
	}

	if err := config.Reconcile.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the sweep tuning values
func (c *ReconcileConfig) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("RECONCILE_CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("RECONCILE_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.CheckTimeout <= 0 {
		return fmt.Errorf("RECONCILE_CHECK_TIMEOUT must be positive, got %s", c.CheckTimeout)
	}
	return nil
}

// CacheTTL returns the cache time-to-live as a duration
func (c *CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// Target returns a loggable description of the database without credentials
func (c *DatabaseConfig) Target() string {
	if c.URL != "" {
		return "DATABASE_URL"
	}
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.Database)
}
