package metrics

import (
	"time"
)

// Collector defines the interface for collecting service metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory, etc.).
type Collector interface {
	// Engine queries; outcome is an error classification ("none" on success)
	RecordQuery(operation string, outcome string, duration time.Duration)

	// Name index lookups that could skip a full scan
	RecordNameIndex(rejected bool)

	// Snapshot load at startup
	RecordSnapshotLoad(source string, records int, duration time.Duration)

	// Cache layer operations
	RecordCacheGet(layer string, hit bool, duration time.Duration)
	RecordCacheSet(layer string, success bool, duration time.Duration)

	// Circuit breaker
	RecordCircuitState(layer string, state CircuitState)

	// Chain-level lookup; layerIndex is -1 on a full miss
	RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the layer has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of Collector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordQuery does nothing.
func (NoOpCollector) RecordQuery(operation string, outcome string, duration time.Duration) {}

// RecordNameIndex does nothing.
func (NoOpCollector) RecordNameIndex(rejected bool) {}

// RecordSnapshotLoad does nothing.
func (NoOpCollector) RecordSnapshotLoad(source string, records int, duration time.Duration) {}

// RecordCacheGet does nothing.
func (NoOpCollector) RecordCacheGet(layer string, hit bool, duration time.Duration) {}

// RecordCacheSet does nothing.
func (NoOpCollector) RecordCacheSet(layer string, success bool, duration time.Duration) {}

// RecordCircuitState does nothing.
func (NoOpCollector) RecordCircuitState(layer string, state CircuitState) {}

// RecordChainGet does nothing.
func (NoOpCollector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {}

// Tee sends every call to each of its collectors in order.
type Tee []Collector

// RecordQuery implements Collector.
func (t Tee) RecordQuery(operation string, outcome string, duration time.Duration) {
	for _, c := range t {
		c.RecordQuery(operation, outcome, duration)
	}
}

// RecordNameIndex implements Collector.
func (t Tee) RecordNameIndex(rejected bool) {
	for _, c := range t {
		c.RecordNameIndex(rejected)
	}
}

// RecordSnapshotLoad implements Collector.
func (t Tee) RecordSnapshotLoad(source string, records int, duration time.Duration) {
	for _, c := range t {
		c.RecordSnapshotLoad(source, records, duration)
	}
}

// RecordCacheGet implements Collector.
func (t Tee) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	for _, c := range t {
		c.RecordCacheGet(layer, hit, duration)
	}
}

// RecordCacheSet implements Collector.
func (t Tee) RecordCacheSet(layer string, success bool, duration time.Duration) {
	for _, c := range t {
		c.RecordCacheSet(layer, success, duration)
	}
}

// RecordCircuitState implements Collector.
func (t Tee) RecordCircuitState(layer string, state CircuitState) {
	for _, c := range t {
		c.RecordCircuitState(layer, state)
	}
}

// RecordChainGet implements Collector.
func (t Tee) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {
	for _, c := range t {
		c.RecordChainGet(hit, layerIndex, totalDuration)
	}
}
