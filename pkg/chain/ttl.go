package chain

import (
	"time"
)

// TTLStrategy picks the TTL written to the layer at layerIndex, given the
// TTL the caller asked for.
type TTLStrategy interface {
	TTL(layerIndex int, base time.Duration) time.Duration
}

// UniformTTL writes the same TTL to every layer.
type UniformTTL struct{}

// TTL returns base.
func (UniformTTL) TTL(layerIndex int, base time.Duration) time.Duration {
	return base
}

// PerLayerTTL gives each layer its own TTL, e.g. a short one for the
// in-process layer and a long one for the shared layer. Layers beyond the
// slice, or with a zero entry, use the base TTL.
type PerLayerTTL []time.Duration

// TTL returns the configured TTL for layerIndex.
func (p PerLayerTTL) TTL(layerIndex int, base time.Duration) time.Duration {
	if layerIndex < len(p) && p[layerIndex] > 0 {
		return p[layerIndex]
	}
	return base
}
