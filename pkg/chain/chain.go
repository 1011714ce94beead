package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"txn-insights/pkg/cache"
	"txn-insights/pkg/logging"
	"txn-insights/pkg/metrics"
	"txn-insights/pkg/resilience"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies when neither the caller nor Config sets a TTL.
const DefaultTTL = time.Hour

// Chain is an ordered list of cache layers, fastest first. A hit in a lower
// layer is copied into the layers above it before Get returns.
type Chain struct {
	layers  []cache.Layer
	ttl     time.Duration
	ttls    TTLStrategy
	metrics metrics.Collector
	logger  *logging.Logger
	sf      singleflight.Group
}

// Config configures a Chain.
type Config struct {
	// TTL is the default entry lifetime (0 = DefaultTTL)
	TTL time.Duration

	// TTLStrategy maps the TTL onto each layer (nil = UniformTTL)
	TTLStrategy TTLStrategy

	// Metrics receives chain and layer metrics (nil = no-op)
	Metrics metrics.Collector

	// Resilience returns the protection settings for the layer at index.
	// nil uses resilience.DefaultConfig with a 100ms timeout for L1 and 1s
	// for deeper layers.
	Resilience func(index int) resilience.Config
}

func defaultResilience(index int) resilience.Config {
	if index == 0 {
		return resilience.DefaultConfig().WithTimeout(100 * time.Millisecond)
	}
	return resilience.DefaultConfig().WithTimeout(time.Second)
}

// New creates a chain with the default Config.
func New(layers ...cache.Layer) (*Chain, error) {
	return NewWithConfig(Config{}, layers...)
}

// NewWithConfig creates a chain over layers, ordered fastest to slowest.
// Every layer is wrapped with resilience protection.
func NewWithConfig(config Config, layers ...cache.Layer) (*Chain, error) {
	if len(layers) == 0 {
		return nil, errors.New("chain: at least one layer required")
	}

	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.TTLStrategy == nil {
		config.TTLStrategy = UniformTTL{}
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}
	if config.Resilience == nil {
		config.Resilience = defaultResilience
	}

	wrapped := make([]cache.Layer, len(layers))
	for i, layer := range layers {
		wrapped[i] = resilience.Wrap(layer, config.Resilience(i), config.Metrics)
	}

	c := &Chain{
		layers:  wrapped,
		ttl:     config.TTL,
		ttls:    config.TTLStrategy,
		metrics: config.Metrics,
		logger:  logging.L().Named("chain"),
	}
	c.logger.Info("cache chain created", zap.String("layers", c.String()))

	return c, nil
}

// Get returns the value for key from the first layer that has it. It
// returns ErrKeyNotFound when every layer misses; layer failures count as
// misses.
func (c *Chain) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	value, index, err := c.lookup(ctx, key)
	c.metrics.RecordChainGet(err == nil, index, time.Since(start))
	return value, err
}

// lookup walks the layers in order and returns the value with the index of
// the layer that had it, or -1.
func (c *Chain) lookup(ctx context.Context, key string) ([]byte, int, error) {
	for i, layer := range c.layers {
		if err := ctx.Err(); err != nil {
			return nil, -1, err
		}

		value, err := layer.Get(ctx, key)
		if err != nil {
			if !cache.IsNotFound(err) {
				c.logger.Debug("layer lookup failed",
					logging.Layer(layer.Name()),
					zap.String("error_type", cache.ClassifyError(err)),
					zap.Error(err),
				)
			}
			continue
		}

		if i > 0 {
			c.warmUpperLayers(ctx, key, value, i)
		}
		return value, i, nil
	}

	return nil, -1, cache.ErrKeyNotFound
}

// warmUpperLayers copies a hit from layer hitIndex into every layer above it.
func (c *Chain) warmUpperLayers(ctx context.Context, key string, value []byte, hitIndex int) {
	for i := hitIndex - 1; i >= 0; i-- {
		if err := c.layers[i].Set(ctx, key, value, c.ttls.TTL(i, c.ttl)); err != nil {
			c.logger.Debug("warm-up failed",
				logging.Layer(c.layers[i].Name()),
				zap.Error(err),
			)
		}
	}
}

// Set writes value to every layer. A ttl <= 0 uses the chain TTL. All
// layers are attempted; the last error is returned.
func (c *Chain) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	var lastErr error
	for i, layer := range c.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := layer.Set(ctx, key, value, c.ttls.TTL(i, ttl)); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// GetOrLoad returns the cached value for key, or calls load, stores its
// result and returns it. Concurrent callers for the same key share one
// lookup and at most one load. hit reports whether the value came from a
// layer. Load errors are returned to every waiting caller and never cached;
// a failure to store the loaded value is logged and otherwise ignored.
func (c *Chain) GetOrLoad(ctx context.Context, key string, load func(context.Context) ([]byte, error)) (value []byte, hit bool, err error) {
	type result struct {
		value []byte
		hit   bool
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if value, err := c.Get(ctx, key); err == nil {
			return result{value: value, hit: true}, nil
		}

		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.Set(ctx, key, loaded, 0); err != nil {
			c.logger.Warn("failed to store loaded value",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return result{value: loaded}, nil
	})
	if err != nil {
		return nil, false, err
	}

	r := v.(result)
	return r.value, r.hit, nil
}

// Delete removes key from every layer. All layers are attempted; the last
// error is returned.
func (c *Chain) Delete(ctx context.Context, key string) error {
	var lastErr error
	for _, layer := range c.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := layer.Delete(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close closes every layer and returns the last error.
func (c *Chain) Close() error {
	var lastErr error
	for _, layer := range c.layers {
		if err := layer.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Layers returns the wrapped layers, fastest first.
func (c *Chain) Layers() []cache.Layer {
	layers := make([]cache.Layer, len(c.layers))
	copy(layers, c.layers)
	return layers
}

// Len returns the number of layers.
func (c *Chain) Len() int {
	return len(c.layers)
}

// String describes the chain, e.g. "chain(2 layers): L1 -> redis".
func (c *Chain) String() string {
	names := make([]string, len(c.layers))
	for i, layer := range c.layers {
		names[i] = layer.Name()
	}
	return fmt.Sprintf("chain(%d layers): %s", len(c.layers), strings.Join(names, " -> "))
}
