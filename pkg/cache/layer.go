package cache

import (
	"context"
	"time"
)

// Layer is a single level of the response cache. Values are opaque encoded
// payloads; a layer never interprets them.
type Layer interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A ttl <= 0 means the layer default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name identifies the layer in logs and metrics (e.g. "L1", "redis").
	Name() string

	// Close releases the layer's resources.
	Close() error
}

// Entry is a stored value with its lifetime.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewEntry builds an entry that expires ttl from now. The value is copied.
func NewEntry(key string, value []byte, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired reports whether the entry has outlived its TTL.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TimeToLive returns the remaining lifetime, or 0 once expired.
func (e *Entry) TimeToLive() time.Duration {
	if e.IsExpired() {
		return 0
	}
	return time.Until(e.ExpiresAt)
}
