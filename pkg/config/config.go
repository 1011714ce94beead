package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds the process configuration, read from the environment.
type Config struct {
	// HTTP Server
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Data source
	DataSource  string
	DataFile    string
	PostgresDSN string

	// Name index
	BloomFalsePositiveRate float64

	// Response cache
	CacheEnabled    bool
	CacheTTL        time.Duration
	CacheMaxEntries int
	// CacheL1TTL and CacheL2TTL override CacheTTL for the memory and Redis
	// layers (0 = CacheTTL)
	CacheL1TTL     time.Duration
	CacheL2TTL     time.Duration
	RedisAddr      string
	RedisKeyPrefix string
	// RedisAsyncWrites stores responses in Redis off the request path
	RedisAsyncWrites bool

	// Metrics
	MetricsNamespace string
}

// Data sources accepted in DATA_SOURCE.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Load reads the configuration from the environment, falling back to
// defaults for unset variables.
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataSource:  getEnv("DATA_SOURCE", SourceFile),
		DataFile:    getEnv("DATA_FILE", "./data/transactions.json"),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		BloomFalsePositiveRate: getEnvFloat("BLOOM_FP_RATE", 0.01),

		CacheEnabled:    getEnvBool("CACHE_ENABLED", true),
		CacheTTL:        getEnvDuration("CACHE_TTL", time.Hour),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),
		CacheL1TTL:      getEnvDuration("CACHE_TTL_L1", 0),
		CacheL2TTL:      getEnvDuration("CACHE_TTL_L2", 0),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisKeyPrefix:  getEnv("REDIS_KEY_PREFIX", "txn-insights:"),

		RedisAsyncWrites: getEnvBool("REDIS_ASYNC_WRITES", true),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "txn_insights"),
	}
}

// Address returns the listen address for Port.
func (c *Config) Address() string {
	return ":" + c.Port
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid read timeout %v: must be positive", c.ReadTimeout))
	}
	if c.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid write timeout %v: must be positive", c.WriteTimeout))
	}

	validSources := []string{SourceFile, SourcePostgres}
	if !slices.Contains(validSources, c.DataSource) {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}
	if c.DataSource == SourceFile && c.DataFile == "" {
		errors = append(errors, "data file path cannot be empty when using file source")
	}
	if c.DataSource == SourcePostgres && c.PostgresDSN == "" {
		errors = append(errors, "POSTGRES_DSN is required when using postgres source")
	}

	if c.BloomFalsePositiveRate <= 0 || c.BloomFalsePositiveRate >= 1 {
		errors = append(errors, fmt.Sprintf("invalid bloom false positive rate %v: must be between 0 and 1", c.BloomFalsePositiveRate))
	}

	if c.CacheEnabled {
		if c.CacheTTL < time.Second {
			errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
		}
		if c.CacheMaxEntries < 1 {
			errors = append(errors, fmt.Sprintf("invalid cache max entries %d: must be at least 1", c.CacheMaxEntries))
		}
		if c.CacheL1TTL < 0 {
			errors = append(errors, fmt.Sprintf("invalid L1 cache TTL %v: must not be negative", c.CacheL1TTL))
		}
		if c.CacheL2TTL < 0 {
			errors = append(errors, fmt.Sprintf("invalid L2 cache TTL %v: must not be negative", c.CacheL2TTL))
		}
	}

	if c.MetricsNamespace == "" {
		errors = append(errors, "metrics namespace cannot be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
