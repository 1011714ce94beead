package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Port:                   "8080",
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           10 * time.Second,
		DataSource:             SourceFile,
		DataFile:               "./data/transactions.json",
		BloomFalsePositiveRate: 0.01,
		CacheEnabled:           true,
		CacheTTL:               time.Hour,
		CacheMaxEntries:        100,
		MetricsNamespace:       "txn",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(c *Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "valid file config",
			modify: func(c *Config) {},
		},
		{
			name: "valid postgres config",
			modify: func(c *Config) {
				c.DataSource = SourcePostgres
				c.PostgresDSN = "postgres://localhost/txn?sslmode=disable"
			},
		},
		{
			name:        "invalid port - non-numeric",
			modify:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			modify:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid data source",
			modify:      func(c *Config) { c.DataSource = "s3" },
			wantErr:     true,
			errorString: "invalid data source 's3': must be one of [file postgres]",
		},
		{
			name:        "file source without path",
			modify:      func(c *Config) { c.DataFile = "" },
			wantErr:     true,
			errorString: "data file path cannot be empty",
		},
		{
			name:        "postgres source without dsn",
			modify:      func(c *Config) { c.DataSource = SourcePostgres },
			wantErr:     true,
			errorString: "POSTGRES_DSN is required",
		},
		{
			name:        "bloom rate out of range",
			modify:      func(c *Config) { c.BloomFalsePositiveRate = 1.5 },
			wantErr:     true,
			errorString: "invalid bloom false positive rate 1.5",
		},
		{
			name:        "cache TTL too short",
			modify:      func(c *Config) { c.CacheTTL = time.Millisecond },
			wantErr:     true,
			errorString: "invalid cache TTL 1ms",
		},
		{
			name:        "negative L1 TTL",
			modify:      func(c *Config) { c.CacheL1TTL = -time.Minute },
			wantErr:     true,
			errorString: "invalid L1 cache TTL -1m0s",
		},
		{
			name:   "per-layer TTLs",
			modify: func(c *Config) { c.CacheL1TTL = time.Minute; c.CacheL2TTL = 2 * time.Hour },
		},
		{
			name: "cache settings ignored when disabled",
			modify: func(c *Config) {
				c.CacheEnabled = false
				c.CacheMaxEntries = 0
			},
		},
		{
			name:        "zero read timeout",
			modify:      func(c *Config) { c.ReadTimeout = 0 },
			wantErr:     true,
			errorString: "invalid read timeout 0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Expected error containing %q, got %q", tt.errorString, err.Error())
			}
		})
	}
}

func TestConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.DataSource = "s3"
	cfg.MetricsNamespace = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}

	for _, want := range []string{"invalid port", "invalid data source", "metrics namespace"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in %q", want, err.Error())
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_SOURCE", "CACHE_ENABLED", "CACHE_TTL", "CACHE_TTL_L1", "CACHE_TTL_L2", "REDIS_ADDR", "BLOOM_FP_RATE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.DataSource != SourceFile {
		t.Errorf("Expected file source, got %s", cfg.DataSource)
	}
	if !cfg.CacheEnabled {
		t.Error("Expected cache enabled by default")
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("Expected cache TTL 1h, got %v", cfg.CacheTTL)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("Expected no redis by default, got %s", cfg.RedisAddr)
	}
	if cfg.CacheL1TTL != 0 || cfg.CacheL2TTL != 0 {
		t.Errorf("Expected per-layer TTLs to default to CACHE_TTL, got %v and %v", cfg.CacheL1TTL, cfg.CacheL2TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_SOURCE", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://db/txn")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("CACHE_MAX_ENTRIES", "50")
	t.Setenv("BLOOM_FP_RATE", "0.001")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_TTL_L1", "1m")
	t.Setenv("CACHE_TTL_L2", "2h")

	cfg := Load()

	if cfg.Address() != ":9090" {
		t.Errorf("Expected :9090, got %s", cfg.Address())
	}
	if cfg.DataSource != SourcePostgres || cfg.PostgresDSN != "postgres://db/txn" {
		t.Errorf("Unexpected data source %s %s", cfg.DataSource, cfg.PostgresDSN)
	}
	if cfg.CacheEnabled {
		t.Error("Expected cache disabled")
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("Expected 15m, got %v", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 50 {
		t.Errorf("Expected 50, got %d", cfg.CacheMaxEntries)
	}
	if cfg.BloomFalsePositiveRate != 0.001 {
		t.Errorf("Expected 0.001, got %v", cfg.BloomFalsePositiveRate)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("Expected redis:6379, got %s", cfg.RedisAddr)
	}
	if cfg.CacheL1TTL != time.Minute || cfg.CacheL2TTL != 2*time.Hour {
		t.Errorf("Expected per-layer TTLs 1m and 2h, got %v and %v", cfg.CacheL1TTL, cfg.CacheL2TTL)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CACHE_TTL", "forever")
	t.Setenv("CACHE_MAX_ENTRIES", "many")

	cfg := Load()

	if cfg.CacheTTL != time.Hour {
		t.Errorf("Expected default TTL, got %v", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 1000 {
		t.Errorf("Expected default max entries, got %d", cfg.CacheMaxEntries)
	}
}
