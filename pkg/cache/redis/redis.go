package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"txn-insights/pkg/cache"

	"github.com/redis/rueidis"
)

// Cache is a Redis-backed cache layer. Values are stored as raw bytes under
// KeyPrefix+key, so several processes serving the same snapshot share
// results.
type Cache struct {
	client rueidis.Client
	config Config
}

// Config holds the Redis layer settings.
type Config struct {
	Name string

	// Addr is the server address in single node mode, e.g. "localhost:6379"
	Addr string

	// ClusterAddrs enables cluster mode when set
	ClusterAddrs []string

	Username string
	Password string

	// DB is ignored in cluster mode
	DB int

	KeyPrefix    string
	DefaultTTL   time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns settings for a local single node.
func DefaultConfig() Config {
	return Config{
		Name:         "redis",
		Addr:         "localhost:6379",
		KeyPrefix:    "txn-insights:",
		DefaultTTL:   time.Hour,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// New connects to Redis and pings it. The layer is not returned unless the
// server answered.
func New(config Config) (*Cache, error) {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	var initAddress []string
	switch {
	case len(config.ClusterAddrs) > 0:
		initAddress = config.ClusterAddrs
		config.DB = 0
	case config.Addr != "":
		initAddress = []string{config.Addr}
	default:
		return nil, errors.New("redis: no address configured (set Addr or ClusterAddrs)")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w: %w", cache.ErrLayerUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w: %w", cache.ErrLayerUnavailable, err)
	}

	return &Cache{
		client: client,
		config: config,
	}, nil
}

func (r *Cache) key(key string) string {
	return r.config.KeyPrefix + key
}

// Get implements cache.Layer.
func (r *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}

	resp := r.client.Do(ctx, r.client.B().Get().Key(r.key(key)).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, cache.ErrCacheMiss
		}
		return nil, cache.WrapError(err, r.Name(), "get")
	}

	data, err := resp.AsBytes()
	if err != nil {
		return nil, cache.WrapError(fmt.Errorf("read response: %w", err), r.Name(), "get")
	}
	return data, nil
}

// Set implements cache.Layer. A ttl <= 0 uses DefaultTTL; with no default
// the key does not expire.
func (r *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = r.config.DefaultTTL
	}

	set := r.client.B().Set().Key(r.key(key)).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Ex(ttl).Build()
	} else {
		cmd = set.Build()
	}

	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return cache.WrapError(err, r.Name(), "set")
	}
	return nil
}

// Delete implements cache.Layer.
func (r *Cache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	if err := r.client.Do(ctx, r.client.B().Del().Key(r.key(key)).Build()).Error(); err != nil {
		return cache.WrapError(err, r.Name(), "delete")
	}
	return nil
}

// Name implements cache.Layer.
func (r *Cache) Name() string {
	return r.config.Name
}

// Close implements cache.Layer.
func (r *Cache) Close() error {
	r.client.Close()
	return nil
}

// Ping checks the connection.
func (r *Cache) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of key, -1 when it has none, or
// ErrCacheMiss when it does not exist.
func (r *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	resp := r.client.Do(ctx, r.client.B().Ttl().Key(r.key(key)).Build())
	if err := resp.Error(); err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}

	seconds, err := resp.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: failed to read response: %w", err)
	}

	switch seconds {
	case -2:
		return 0, cache.ErrCacheMiss
	case -1:
		return -1, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// Clear deletes every key under KeyPrefix and returns how many were removed.
func (r *Cache) Clear(ctx context.Context) (int, error) {
	var cursor uint64
	removed := 0

	for {
		resp := r.client.Do(ctx, r.client.B().Scan().Cursor(cursor).Match(r.config.KeyPrefix+"*").Count(100).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return removed, fmt.Errorf("redis clear: %w", err)
		}

		if len(entry.Elements) > 0 {
			if err := r.client.Do(ctx, r.client.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return removed, fmt.Errorf("redis clear: %w", err)
			}
			removed += len(entry.Elements)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return removed, nil
		}
	}
}
