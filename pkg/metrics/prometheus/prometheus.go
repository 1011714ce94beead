package prometheus

import (
	"strconv"
	"time"

	"txn-insights/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements metrics.Collector on Prometheus vectors. It is itself
// a prometheus.Collector, so it registers as a single unit.
type Collector struct {
	queries       *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
	nameIndex     *prometheus.CounterVec
	snapshotSize  *prometheus.GaugeVec
	snapshotLoad  *prometheus.GaugeVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	cacheSets     *prometheus.CounterVec
	getLatency    *prometheus.HistogramVec
	setLatency    *prometheus.HistogramVec
	circuitState  *prometheus.GaugeVec
	circuitOpens  *prometheus.CounterVec
	chainHits     *prometheus.CounterVec
	chainMisses   prometheus.Counter
	chainLatency  *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	allCollectors []prometheus.Collector
}

var (
	_ metrics.Collector    = (*Collector)(nil)
	_ prometheus.Collector = (*Collector)(nil)
)

// 0.1ms to ~3s
var latencyBuckets = prometheus.ExponentialBuckets(0.0001, 2, 15)

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of engine queries by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		queryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Engine query latency",
				Buckets:   latencyBuckets,
			},
			[]string{"operation"},
		),
		nameIndex: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "name_index_lookups_total",
				Help:      "Name index lookups; rejected lookups skipped a full scan",
			},
			[]string{"result"},
		),
		snapshotSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_records",
				Help:      "Number of records in the loaded snapshot",
			},
			[]string{"source"},
		),
		snapshotLoad: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_load_duration_seconds",
				Help:      "Time taken to load the snapshot",
			},
			[]string{"source"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits per layer",
			},
			[]string{"layer"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses per layer",
			},
			[]string{"layer"},
		),
		cacheSets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_sets_total",
				Help:      "Total number of cache set operations per layer and status",
			},
			[]string{"layer", "status"},
		),
		getLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_get_duration_seconds",
				Help:      "Cache get operation latency",
				Buckets:   latencyBuckets,
			},
			[]string{"layer"},
		),
		setLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_set_duration_seconds",
				Help:      "Cache set operation latency",
				Buckets:   latencyBuckets,
			},
			[]string{"layer"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per layer (0=closed, 1=open, 2=half-open)",
			},
			[]string{"layer"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per layer",
			},
			[]string{"layer"},
		),
		chainHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_hits_total",
				Help:      "Total number of chain-level cache hits by layer index",
			},
			[]string{"layer_index"},
		),
		chainMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_misses_total",
				Help:      "Total number of chain-level cache misses",
			},
		),
		chainLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chain_get_duration_seconds",
				Help:      "Chain get operation total latency",
				Buckets:   latencyBuckets,
			},
			[]string{"hit"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route template, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route template",
				Buckets:   latencyBuckets,
			},
			[]string{"route", "method"},
		),
	}

	c.allCollectors = []prometheus.Collector{
		c.queries,
		c.queryLatency,
		c.nameIndex,
		c.snapshotSize,
		c.snapshotLoad,
		c.cacheHits,
		c.cacheMisses,
		c.cacheSets,
		c.getLatency,
		c.setLatency,
		c.circuitState,
		c.circuitOpens,
		c.chainHits,
		c.chainMisses,
		c.chainLatency,
		c.httpRequests,
		c.httpLatency,
	}

	return c
}

// Register registers the collector with registry.
func (c *Collector) Register(registry prometheus.Registerer) error {
	return registry.Register(c)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, col := range c.allCollectors {
		col.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, col := range c.allCollectors {
		col.Collect(ch)
	}
}

// RecordQuery implements metrics.Collector.
func (c *Collector) RecordQuery(operation string, outcome string, duration time.Duration) {
	c.queries.WithLabelValues(operation, outcome).Inc()
	c.queryLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordNameIndex implements metrics.Collector.
func (c *Collector) RecordNameIndex(rejected bool) {
	result := "passed"
	if rejected {
		result = "rejected"
	}
	c.nameIndex.WithLabelValues(result).Inc()
}

// RecordSnapshotLoad implements metrics.Collector.
func (c *Collector) RecordSnapshotLoad(source string, records int, duration time.Duration) {
	c.snapshotSize.WithLabelValues(source).Set(float64(records))
	c.snapshotLoad.WithLabelValues(source).Set(duration.Seconds())
}

// RecordCacheGet implements metrics.Collector.
func (c *Collector) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	if hit {
		c.cacheHits.WithLabelValues(layer).Inc()
	} else {
		c.cacheMisses.WithLabelValues(layer).Inc()
	}
	c.getLatency.WithLabelValues(layer).Observe(duration.Seconds())
}

// RecordCacheSet implements metrics.Collector.
func (c *Collector) RecordCacheSet(layer string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	c.cacheSets.WithLabelValues(layer, status).Inc()
	c.setLatency.WithLabelValues(layer).Observe(duration.Seconds())
}

// RecordCircuitState implements metrics.Collector.
func (c *Collector) RecordCircuitState(layer string, state metrics.CircuitState) {
	c.circuitState.WithLabelValues(layer).Set(float64(state))
	if state == metrics.CircuitOpen {
		c.circuitOpens.WithLabelValues(layer).Inc()
	}
}

// RecordChainGet implements metrics.Collector.
func (c *Collector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {
	if hit {
		c.chainHits.WithLabelValues(strconv.Itoa(layerIndex)).Inc()
	} else {
		c.chainMisses.Inc()
	}
	c.chainLatency.WithLabelValues(strconv.FormatBool(hit)).Observe(totalDuration.Seconds())
}

// RecordHTTPRequest records one served HTTP request. route is the router
// template, not the raw path, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}
