package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"txn-insights/pkg/cache"
)

func testConfig() Config {
	config := DefaultConfig()
	config.Name = "TestRedis"
	config.KeyPrefix = "test:txn-insights:"
	config.DialTimeout = 2 * time.Second
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		config.Addr = addr
	}
	return config
}

func setupTestRedis(t *testing.T) *Cache {
	t.Helper()

	r, err := New(testConfig())
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ctx := context.Background()
	r.Clear(ctx)
	t.Cleanup(func() {
		r.Clear(context.Background())
		r.Close()
	})

	return r
}

func TestNew(t *testing.T) {
	r := setupTestRedis(t)

	if r.Name() != "TestRedis" {
		t.Errorf("Expected name 'TestRedis', got '%s'", r.Name())
	}
	if err := r.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNew_NoAddress(t *testing.T) {
	config := DefaultConfig()
	config.Addr = ""

	if _, err := New(config); err == nil {
		t.Error("Expected error with no address configured")
	}
}

func TestCache_SetGet(t *testing.T) {
	r := setupTestRedis(t)
	ctx := context.Background()

	payload := []byte(`{"amount":2889.17}`)
	if err := r.Set(ctx, "key1", payload, time.Minute); err != nil {
		t.Fatalf("Failed to set key: %v", err)
	}

	val, err := r.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if string(val) != string(payload) {
		t.Errorf("Expected %s, got %s", payload, val)
	}

	ttl, err := r.TTL(ctx, "key1")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL in (0, 1m], got %v", ttl)
	}
}

func TestCache_GetMiss(t *testing.T) {
	r := setupTestRedis(t)

	_, err := r.Get(context.Background(), "nonexistent")
	if !cache.IsNotFound(err) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestCache_Delete(t *testing.T) {
	r := setupTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "key1", []byte("v"), time.Minute)

	if err := r.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Failed to delete key: %v", err)
	}

	if _, err := r.Get(ctx, "key1"); !cache.IsNotFound(err) {
		t.Errorf("Expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestCache_Clear(t *testing.T) {
	r := setupTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "a", []byte("1"), time.Minute)
	r.Set(ctx, "b", []byte("2"), time.Minute)

	removed, err := r.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 keys removed, got %d", removed)
	}
	if _, err := r.Get(ctx, "a"); !cache.IsNotFound(err) {
		t.Errorf("Expected miss after clear, got %v", err)
	}
}

func TestCache_ErrorsNameTheLayer(t *testing.T) {
	r := setupTestRedis(t)
	r.client.Close()

	_, err := r.Get(context.Background(), "key1")
	if err == nil {
		t.Fatal("Expected error from a closed client")
	}
	if cache.IsNotFound(err) {
		t.Fatalf("Expected a backend error, got a miss: %v", err)
	}
	if !strings.Contains(err.Error(), "cache layer TestRedis get") {
		t.Errorf("Expected error to name the layer and operation, got %q", err.Error())
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Name != "redis" {
		t.Errorf("Expected default name 'redis', got '%s'", config.Name)
	}
	if config.Addr != "localhost:6379" {
		t.Errorf("Expected default addr 'localhost:6379', got '%s'", config.Addr)
	}
	if config.KeyPrefix != "txn-insights:" {
		t.Errorf("Expected default prefix 'txn-insights:', got '%s'", config.KeyPrefix)
	}
	if config.DefaultTTL != time.Hour {
		t.Errorf("Expected default TTL 1h, got %v", config.DefaultTTL)
	}
}
