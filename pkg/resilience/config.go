package resilience

import (
	"time"
)

// Config configures the protection around one cache layer.
type Config struct {
	// Timeout bounds every operation (0 = no timeout)
	Timeout time.Duration

	// CircuitBreaker configures when the layer is taken out of service
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxRequests is the number of trial requests allowed while half-open
	MaxRequests uint32

	// Interval is the cyclic period after which closed-state counts are
	// cleared. 0 never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open
	Timeout time.Duration

	// ReadyToTrip decides, after a failure, whether to open the breaker.
	// nil trips after 5 consecutive failures.
	ReadyToTrip func(counts Counts) bool
}

// Counts mirrors the breaker's request counters.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultConfig returns the settings used for a remote layer.
func DefaultConfig() Config {
	return Config{
		Timeout: time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		},
	}
}

// WithTimeout returns a copy of the config with the operation timeout set.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithCircuitBreakerTimeout returns a copy of the config with the open-state
// duration set.
func (c Config) WithCircuitBreakerTimeout(timeout time.Duration) Config {
	c.CircuitBreaker.Timeout = timeout
	return c
}
