package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"txn-insights/pkg/cache"
	"txn-insights/pkg/logging"
	"txn-insights/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Layer wraps a cache.Layer with a per-operation timeout and a circuit
// breaker. Cache misses and caller cancellations do not count as failures.
type Layer struct {
	layer   cache.Layer
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

var _ cache.Layer = (*Layer)(nil)

// Wrap protects layer according to config. A nil collector disables metrics.
func Wrap(layer cache.Layer, config Config, collector metrics.Collector) *Layer {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	l := &Layer{
		layer:   layer,
		timeout: config.Timeout,
		metrics: collector,
		logger:  logging.L().Named("resilience").With(logging.Layer(layer.Name())),
	}

	readyToTrip := config.CircuitBreaker.ReadyToTrip
	settings := gobreaker.Settings{
		Name:        layer.Name(),
		MaxRequests: config.CircuitBreaker.MaxRequests,
		Interval:    config.CircuitBreaker.Interval,
		Timeout:     config.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if readyToTrip == nil {
				return counts.ConsecutiveFailures >= 5
			}
			return readyToTrip(Counts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			})
		},
		IsSuccessful: func(err error) bool {
			return err == nil || cache.IsNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			l.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			l.metrics.RecordCircuitState(name, circuitState(to))
		},
	}
	l.cb = gobreaker.NewCircuitBreaker(settings)

	l.logger.Info("resilient layer initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreaker.MaxRequests),
		zap.Duration("circuit_timeout", config.CircuitBreaker.Timeout),
	)

	return l
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// State returns the current breaker state.
func (l *Layer) State() metrics.CircuitState {
	return circuitState(l.cb.State())
}

// Name returns the name of the wrapped layer.
func (l *Layer) Name() string {
	return l.layer.Name()
}

// Unwrap returns the protected layer.
func (l *Layer) Unwrap() cache.Layer {
	return l.layer
}

// Get implements cache.Layer.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := l.execute(ctx, "get", key, func(ctx context.Context) ([]byte, error) {
		return l.layer.Get(ctx, key)
	})
	l.metrics.RecordCacheGet(l.layer.Name(), err == nil, time.Since(start))
	return value, err
}

// Set implements cache.Layer.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	_, err := l.execute(ctx, "set", key, func(ctx context.Context) ([]byte, error) {
		return nil, l.layer.Set(ctx, key, value, ttl)
	})
	l.metrics.RecordCacheSet(l.layer.Name(), err == nil, time.Since(start))
	return err
}

// Delete implements cache.Layer.
func (l *Layer) Delete(ctx context.Context, key string) error {
	_, err := l.execute(ctx, "delete", key, func(ctx context.Context) ([]byte, error) {
		return nil, l.layer.Delete(ctx, key)
	})
	return err
}

// Close closes the wrapped layer.
func (l *Layer) Close() error {
	return l.layer.Close()
}

// execute runs fn through the breaker under the layer timeout and maps the
// breaker and deadline errors onto the cache sentinels.
func (l *Layer) execute(ctx context.Context, op, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := l.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err == nil {
		value, _ := result.([]byte)
		return value, nil
	}

	elapsed := time.Since(start)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		l.logger.Debug("circuit breaker rejected request", logging.Operation(op))
		return nil, fmt.Errorf("%w: %s", cache.ErrCircuitOpen, l.layer.Name())
	case cache.IsNotFound(err):
		return nil, err
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		l.logger.Warn("operation timeout",
			logging.Operation(op),
			zap.String("key", key),
			zap.Duration("timeout", l.timeout),
			zap.Duration("elapsed", elapsed),
		)
		return nil, fmt.Errorf("%w: %s %s after %v", cache.ErrTimeout, l.layer.Name(), op, elapsed)
	}

	l.logger.Error("operation failed",
		logging.Operation(op),
		zap.String("key", key),
		zap.String("error_type", cache.ClassifyError(err)),
		zap.Error(err),
	)
	return nil, err
}
