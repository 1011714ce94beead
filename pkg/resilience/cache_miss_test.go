package resilience

import (
	"context"
	"testing"
	"time"

	"txn-insights/pkg/cache"
	"txn-insights/pkg/cache/memory"
	"txn-insights/pkg/cache/mock"
)

// Misses are the normal answer for a cold response cache and must never take
// a layer out of service.
func TestLayer_CacheMissDoesNotTripCircuit(t *testing.T) {
	mem := memory.New(memory.Config{Name: "test-cache-miss", MaxEntries: 100})

	config := Config{
		Timeout: time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts Counts) bool {
				return counts.TotalFailures >= 3
			},
		},
	}

	l := Wrap(mem, config, nil)
	defer l.Close()

	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := l.Get(ctx, "nonexistent-key")
		if !cache.IsNotFound(err) {
			t.Errorf("Expected ErrKeyNotFound, got: %v", err)
		}
		if cache.IsCircuitOpen(err) {
			t.Fatalf("Circuit breaker opened after %d cache misses", i+1)
		}
	}

	if err := l.Set(ctx, "key1", []byte("value1"), time.Hour); err != nil {
		t.Fatalf("Set failed after cache misses: %v", err)
	}

	value, err := l.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed after cache misses: %v", err)
	}
	if string(value) != "value1" {
		t.Errorf("Expected value1, got %s", value)
	}
}

func TestLayer_RealErrorsStillTripCircuit(t *testing.T) {
	failing := mock.Failing("always-failing", cache.ErrLayerUnavailable)

	config := Config{
		Timeout: 100 * time.Millisecond,
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts Counts) bool {
				return counts.TotalFailures >= 5
			},
		},
	}

	l := Wrap(failing, config, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := l.Get(ctx, "key1")

		if i < 5 {
			if !cache.IsUnavailable(err) {
				t.Errorf("Expected ErrLayerUnavailable, got: %v", err)
			}
		} else if !cache.IsCircuitOpen(err) {
			t.Errorf("Expected circuit to be open after %d failures, got: %v", i+1, err)
		}
	}
}
