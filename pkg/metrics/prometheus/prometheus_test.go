package prometheus

import (
	"testing"
	"time"

	"txn-insights/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func gather(t *testing.T, registry *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	// Sum every series of a family; enough for single-label assertions.
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				values[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return values
}

func TestCollector_Register(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector("txn")

	if err := c.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := c.Register(registry); err == nil {
		t.Error("Expected error on duplicate registration")
	}
}

func TestCollector_Records(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector("txn")
	if err := c.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	c.RecordQuery("totalAmount", "none", time.Millisecond)
	c.RecordQuery("maxAmount", "empty_store", time.Millisecond)
	c.RecordNameIndex(true)
	c.RecordSnapshotLoad("file", 11, 10*time.Millisecond)
	c.RecordCacheGet("L1", true, time.Microsecond)
	c.RecordCacheGet("L1", false, time.Microsecond)
	c.RecordCacheSet("L1", true, time.Microsecond)
	c.RecordCircuitState("redis", metrics.CircuitOpen)
	c.RecordChainGet(true, 1, time.Microsecond)
	c.RecordChainGet(false, -1, time.Microsecond)
	c.RecordHTTPRequest("/topSender", "GET", 200, time.Millisecond)

	values := gather(t, registry)

	tests := []struct {
		name     string
		expected float64
	}{
		{"txn_queries_total", 2},
		{"txn_query_duration_seconds", 2},
		{"txn_name_index_lookups_total", 1},
		{"txn_snapshot_records", 11},
		{"txn_cache_hits_total", 1},
		{"txn_cache_misses_total", 1},
		{"txn_cache_sets_total", 1},
		{"txn_circuit_state", float64(metrics.CircuitOpen)},
		{"txn_circuit_opens_total", 1},
		{"txn_chain_hits_total", 1},
		{"txn_chain_misses_total", 1},
		{"txn_chain_get_duration_seconds", 2},
		{"txn_http_requests_total", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := values[tt.name]; got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestCollector_ChainHitLabel(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector("txn")
	c.Register(registry)

	c.RecordChainGet(true, 12, time.Microsecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != "txn_chain_hits_total" {
			continue
		}
		label := mf.GetMetric()[0].GetLabel()[0]
		if label.GetName() != "layer_index" || label.GetValue() != "12" {
			t.Errorf("Expected layer_index=12, got %s=%s", label.GetName(), label.GetValue())
		}
		return
	}
	t.Error("txn_chain_hits_total not found")
}
