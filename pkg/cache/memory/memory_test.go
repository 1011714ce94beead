package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"txn-insights/pkg/cache"
)

func newTestCache(t *testing.T, config Config) *Cache {
	t.Helper()
	if config.Name == "" {
		config.Name = "test"
	}
	c := New(config)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_GetSet(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	_, err := c.Get(ctx, "nonexistent")
	if !cache.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := c.Set(ctx, "key1", []byte(`"value1"`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != `"value1"` {
		t.Errorf("Expected \"value1\", got %s", value)
	}
}

func TestCache_SetCopiesValue(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	buf := []byte("12345")
	c.Set(ctx, "key1", buf, 0)
	buf[0] = 'X'

	value, _ := c.Get(ctx, "key1")
	if string(value) != "12345" {
		t.Errorf("Stored value changed with caller buffer: %s", value)
	}
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "key1"); !cache.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}

	if err := c.Delete(ctx, "missing"); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func TestCache_TTL(t *testing.T) {
	c := newTestCache(t, Config{CleanupInterval: 10 * time.Millisecond})
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := c.Get(ctx, "key1"); err != nil {
		t.Fatalf("Get failed before expiration: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := c.Get(ctx, "key1"); !cache.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound after expiration, got %v", err)
	}
}

func TestCache_LRU(t *testing.T) {
	c := newTestCache(t, Config{MaxEntries: 2})
	ctx := context.Background()

	c.Set(ctx, "key1", []byte("1"), 0)
	c.Set(ctx, "key2", []byte("2"), 0)

	// Access key1 to make key2 least recently used
	if _, err := c.Get(ctx, "key1"); err != nil {
		t.Fatalf("Get key1 failed: %v", err)
	}

	c.Set(ctx, "key3", []byte("3"), 0)

	if _, err := c.Get(ctx, "key1"); err != nil {
		t.Errorf("key1 should not be evicted: %v", err)
	}
	if _, err := c.Get(ctx, "key2"); err == nil {
		t.Error("key2 should have been evicted")
	}
	if _, err := c.Get(ctx, "key3"); err != nil {
		t.Errorf("key3 should be present: %v", err)
	}

	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Expected 1 eviction, got %d", got)
	}
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c := newTestCache(t, Config{MaxEntries: 2})
	ctx := context.Background()

	c.Set(ctx, "key1", []byte("1"), 0)
	c.Set(ctx, "key2", []byte("2"), 0)
	c.Set(ctx, "key2", []byte("22"), 0)

	if _, err := c.Get(ctx, "key1"); err != nil {
		t.Errorf("Overwriting key2 evicted key1: %v", err)
	}
	if got := c.Stats().Evictions; got != 0 {
		t.Errorf("Expected 0 evictions, got %d", got)
	}
}

func TestCache_Concurrency(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			key := fmt.Sprintf("key%d", id)
			value := fmt.Sprintf("value%d", id)

			if err := c.Set(ctx, key, []byte(value), 0); err != nil {
				t.Errorf("Concurrent Set failed: %v", err)
			}

			got, err := c.Get(ctx, key)
			if err != nil {
				t.Errorf("Concurrent Get failed: %v", err)
			}
			if string(got) != value {
				t.Errorf("Concurrent Get got %s, expected %s", got, value)
			}

			if err := c.Delete(ctx, key); err != nil {
				t.Errorf("Concurrent Delete failed: %v", err)
			}
		}(i)
	}

	wg.Wait()
}

func TestCache_KeyValidation(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	invalidKeys := []string{
		"",                       // empty
		" padded ",               // leading/trailing whitespace
		"key\twith\ttabs",        // tabs
		"key\nwith\nnewlines",    // newlines
		strings.Repeat("a", 251), // too long
	}

	for _, key := range invalidKeys {
		if err := c.Set(ctx, key, []byte("v"), 0); err == nil {
			t.Errorf("Expected Set error for invalid key: %q", key)
		}
		if _, err := c.Get(ctx, key); err == nil {
			t.Errorf("Expected Get error for invalid key: %q", key)
		}
		if err := c.Delete(ctx, key); err == nil {
			t.Errorf("Expected Delete error for invalid key: %q", key)
		}
	}
}

func TestCache_Name(t *testing.T) {
	c := newTestCache(t, Config{Name: "L1"})
	if c.Name() != "L1" {
		t.Errorf("Expected name 'L1', got %q", c.Name())
	}

	d := New(Config{})
	defer d.Close()
	if d.Name() != "memory" {
		t.Errorf("Expected default name 'memory', got %q", d.Name())
	}
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(t, Config{MaxEntries: 10})
	ctx := context.Background()

	stats := c.Stats()
	if stats.Size != 0 || stats.MaxEntries != 10 {
		t.Errorf("Unexpected initial stats: %+v", stats)
	}

	c.Set(ctx, "key1", []byte("1"), 0)
	c.Set(ctx, "key2", []byte("2"), 0)
	c.Get(ctx, "key1")
	c.Get(ctx, "missing")

	stats = c.Stats()
	if stats.Size != 2 {
		t.Errorf("Expected size 2, got %d", stats.Size)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
}

func BenchmarkCache_Get(b *testing.B) {
	c := New(Config{Name: "bench"})
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		c.Set(ctx, fmt.Sprintf("key%d", i), []byte("value"), 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.Get(ctx, fmt.Sprintf("key%d", i%1000))
			i++
		}
	})
}
