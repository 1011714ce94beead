package memory

import (
	"strconv"
	"sync"
	"time"

	"txn-insights/pkg/metrics"
)

// Collector keeps metrics in process memory. It backs the JSON metrics
// endpoint and lets tests assert on what was recorded.
type Collector struct {
	mu sync.RWMutex

	queries map[string]*queryMetrics
	layers  map[string]*LayerMetrics

	chainHits        int64
	chainMisses      int64
	chainHitsByLayer map[int]int64

	nameIndexLookups  int64
	nameIndexRejected int64

	loads []SnapshotLoad
}

var _ metrics.Collector = (*Collector)(nil)

type queryMetrics struct {
	outcomes map[string]int64
	count    int64
	total    time.Duration
}

// QueryMetrics summarizes one engine operation.
type QueryMetrics struct {
	Count      int64            `json:"count"`
	Outcomes   map[string]int64 `json:"outcomes"`
	MeanMillis float64          `json:"mean_ms"`
}

// LayerMetrics holds counters for a single cache layer.
type LayerMetrics struct {
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Sets         int64  `json:"sets"`
	SetErrors    int64  `json:"set_errors"`
	CircuitState string `json:"circuit_state"`
	CircuitOpens int64  `json:"circuit_opens"`
}

// ChainMetrics holds chain-level lookup counters.
type ChainMetrics struct {
	Hits int64 `json:"hits"`
	// HitsByLayer is keyed by layer index
	HitsByLayer map[string]int64 `json:"hits_by_layer"`
	Misses      int64            `json:"misses"`
}

// NameIndexMetrics counts name index lookups.
type NameIndexMetrics struct {
	Lookups  int64 `json:"lookups"`
	Rejected int64 `json:"rejected"`
}

// SnapshotLoad describes one snapshot load.
type SnapshotLoad struct {
	Source         string  `json:"source"`
	Records        int     `json:"records"`
	DurationMillis float64 `json:"duration_ms"`
}

// Snapshot is a point-in-time copy of everything collected.
type Snapshot struct {
	Queries       map[string]QueryMetrics `json:"queries"`
	Layers        map[string]LayerMetrics `json:"layers"`
	Chain         ChainMetrics            `json:"chain"`
	NameIndex     NameIndexMetrics        `json:"name_index"`
	SnapshotLoads []SnapshotLoad          `json:"snapshot_loads"`
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.queries = make(map[string]*queryMetrics)
	c.layers = make(map[string]*LayerMetrics)
	c.chainHits = 0
	c.chainMisses = 0
	c.chainHitsByLayer = make(map[int]int64)
	c.nameIndexLookups = 0
	c.nameIndexRejected = 0
	c.loads = nil
}

// layer returns the metrics for name, creating them. Callers hold c.mu.
func (c *Collector) layer(name string) *LayerMetrics {
	lm, ok := c.layers[name]
	if !ok {
		lm = &LayerMetrics{CircuitState: metrics.CircuitClosed.String()}
		c.layers[name] = lm
	}
	return lm
}

// RecordQuery implements metrics.Collector.
func (c *Collector) RecordQuery(operation string, outcome string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	qm, ok := c.queries[operation]
	if !ok {
		qm = &queryMetrics{outcomes: make(map[string]int64)}
		c.queries[operation] = qm
	}
	qm.outcomes[outcome]++
	qm.count++
	qm.total += duration
}

// RecordNameIndex implements metrics.Collector.
func (c *Collector) RecordNameIndex(rejected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nameIndexLookups++
	if rejected {
		c.nameIndexRejected++
	}
}

// RecordSnapshotLoad implements metrics.Collector.
func (c *Collector) RecordSnapshotLoad(source string, records int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loads = append(c.loads, SnapshotLoad{
		Source:         source,
		Records:        records,
		DurationMillis: millis(duration),
	})
}

// RecordCacheGet implements metrics.Collector.
func (c *Collector) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lm := c.layer(layer)
	if hit {
		lm.Hits++
	} else {
		lm.Misses++
	}
}

// RecordCacheSet implements metrics.Collector.
func (c *Collector) RecordCacheSet(layer string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lm := c.layer(layer)
	lm.Sets++
	if !success {
		lm.SetErrors++
	}
}

// RecordCircuitState implements metrics.Collector.
func (c *Collector) RecordCircuitState(layer string, state metrics.CircuitState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lm := c.layer(layer)
	if lm.CircuitState != metrics.CircuitOpen.String() && state == metrics.CircuitOpen {
		lm.CircuitOpens++
	}
	lm.CircuitState = state.String()
}

// RecordChainGet implements metrics.Collector.
func (c *Collector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hit {
		c.chainHits++
		c.chainHitsByLayer[layerIndex]++
	} else {
		c.chainMisses++
	}
}

// QueryCount returns how many times operation finished with outcome.
func (c *Collector) QueryCount(operation, outcome string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if qm, ok := c.queries[operation]; ok {
		return qm.outcomes[outcome]
	}
	return 0
}

// Snapshot returns a copy of the collected metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Queries: make(map[string]QueryMetrics, len(c.queries)),
		Layers:  make(map[string]LayerMetrics, len(c.layers)),
		Chain: ChainMetrics{
			Hits:        c.chainHits,
			Misses:      c.chainMisses,
			HitsByLayer: make(map[string]int64, len(c.chainHitsByLayer)),
		},
		NameIndex: NameIndexMetrics{
			Lookups:  c.nameIndexLookups,
			Rejected: c.nameIndexRejected,
		},
		SnapshotLoads: append([]SnapshotLoad{}, c.loads...),
	}

	for op, qm := range c.queries {
		outcomes := make(map[string]int64, len(qm.outcomes))
		for k, v := range qm.outcomes {
			outcomes[k] = v
		}
		s.Queries[op] = QueryMetrics{
			Count:      qm.count,
			Outcomes:   outcomes,
			MeanMillis: millis(qm.total) / float64(qm.count),
		}
	}

	for name, lm := range c.layers {
		s.Layers[name] = *lm
	}

	for idx, hits := range c.chainHitsByLayer {
		s.Chain.HitsByLayer[strconv.Itoa(idx)] = hits
	}

	return s
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
