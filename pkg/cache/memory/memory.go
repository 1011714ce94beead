package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"txn-insights/pkg/cache"
	"txn-insights/pkg/logging"

	"go.uber.org/zap"
)

// Cache is an in-process cache layer with TTL expiry and least-recently-used
// eviction. It is safe for concurrent use.
type Cache struct {
	data map[string]*item
	mu   sync.RWMutex

	config Config
	logger *logging.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	wg            sync.WaitGroup
}

type item struct {
	*cache.Entry
	accessedAt time.Time
}

// Config holds the memory layer settings.
type Config struct {
	// Name is the layer identifier
	Name string

	// MaxEntries caps the number of entries (0 = unlimited)
	MaxEntries int

	// DefaultTTL applies when Set is called with ttl <= 0
	DefaultTTL time.Duration

	// CleanupInterval is how often expired entries are swept
	CleanupInterval time.Duration

	// Logger defaults to the global logger
	Logger *logging.Logger
}

// New creates a memory layer and starts its cleanup goroutine. Call Close to
// stop it.
func New(config Config) *Cache {
	if config.Name == "" {
		config.Name = "memory"
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.Logger == nil {
		config.Logger = logging.L()
	}

	c := &Cache{
		data:          make(map[string]*item),
		config:        config,
		logger:        config.Logger.Named("memory").With(logging.Layer(config.Name)),
		stopCleanup:   make(chan struct{}),
		cleanupTicker: time.NewTicker(config.CleanupInterval),
	}

	c.wg.Add(1)
	go c.cleanup()

	return c
}

// Get returns the value stored under key. The returned slice must not be
// modified.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.data[key]
	if !ok {
		c.misses.Add(1)
		return nil, cache.ErrKeyNotFound
	}

	if it.IsExpired() {
		delete(c.data, key)
		c.misses.Add(1)
		return nil, cache.ErrKeyNotFound
	}

	it.accessedAt = time.Now()
	c.hits.Add(1)
	return it.Value, nil
}

// Set stores a copy of value. When the cache is full the least recently used
// entry is evicted first.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && c.config.MaxEntries > 0 && len(c.data) >= c.config.MaxEntries {
		c.evictLocked()
	}

	c.data[key] = &item{
		Entry:      cache.NewEntry(key, value, ttl),
		accessedAt: time.Now(),
	}
	return nil
}

// evictLocked drops the least recently used entry. Callers hold c.mu.
func (c *Cache) evictLocked() {
	var lruKey string
	var lruTime time.Time

	for k, it := range c.data {
		if lruKey == "" || it.accessedAt.Before(lruTime) {
			lruKey = k
			lruTime = it.accessedAt
		}
	}

	if lruKey != "" {
		delete(c.data, lruKey)
		c.evictions.Add(1)
		c.logger.Debug("evicted entry", zap.String("key", lruKey))
	}
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()

	return nil
}

// Name returns the layer name.
func (c *Cache) Name() string {
	return c.config.Name
}

// Close stops the cleanup goroutine and drops all entries.
func (c *Cache) Close() error {
	c.cleanupTicker.Stop()
	close(c.stopCleanup)
	c.wg.Wait()

	c.mu.Lock()
	c.data = make(map[string]*item)
	c.mu.Unlock()

	return nil
}

func (c *Cache) cleanup() {
	defer c.wg.Done()

	for {
		select {
		case <-c.cleanupTicker.C:
			if n := c.removeExpired(); n > 0 {
				c.logger.Debug("removed expired entries", zap.Int("count", n))
			}
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache) removeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, it := range c.data {
		if it.IsExpired() {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Stats holds memory layer counters.
type Stats struct {
	Size       int   `json:"size"`
	MaxEntries int   `json:"max_entries"` // 0 = unlimited
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	size := len(c.data)
	c.mu.RUnlock()

	return Stats{
		Size:       size,
		MaxEntries: c.config.MaxEntries,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
}
