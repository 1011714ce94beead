package mock

import (
	"context"
	"sync/atomic"
	"time"

	"txn-insights/pkg/cache"
)

// Layer is a cache.Layer whose behavior is set through function hooks. It
// counts calls for assertions in tests.
type Layer struct {
	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
	NameFunc   func() string
	CloseFunc  func() error

	getCalls    atomic.Int64
	setCalls    atomic.Int64
	deleteCalls atomic.Int64
	closeCalls  atomic.Int64
}

var _ cache.Layer = (*Layer)(nil)

// New returns a layer that misses on every Get and accepts every write.
func New(name string) *Layer {
	return &Layer{
		NameFunc: func() string { return name },
		GetFunc: func(ctx context.Context, key string) ([]byte, error) {
			return nil, cache.ErrKeyNotFound
		},
	}
}

// Failing returns a layer whose operations all fail with err.
func Failing(name string, err error) *Layer {
	return &Layer{
		NameFunc: func() string { return name },
		GetFunc: func(ctx context.Context, key string) ([]byte, error) {
			return nil, err
		},
		SetFunc: func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
			return err
		},
		DeleteFunc: func(ctx context.Context, key string) error {
			return err
		},
	}
}

// Get implements cache.Layer.
func (m *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	m.getCalls.Add(1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, cache.ErrKeyNotFound
}

// Set implements cache.Layer.
func (m *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalls.Add(1)
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	return nil
}

// Delete implements cache.Layer.
func (m *Layer) Delete(ctx context.Context, key string) error {
	m.deleteCalls.Add(1)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// Name implements cache.Layer.
func (m *Layer) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// Close implements cache.Layer.
func (m *Layer) Close() error {
	m.closeCalls.Add(1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// GetCalls returns the number of Get calls.
func (m *Layer) GetCalls() int {
	return int(m.getCalls.Load())
}

// SetCalls returns the number of Set calls.
func (m *Layer) SetCalls() int {
	return int(m.setCalls.Load())
}

// DeleteCalls returns the number of Delete calls.
func (m *Layer) DeleteCalls() int {
	return int(m.deleteCalls.Load())
}

// CloseCalls returns the number of Close calls.
func (m *Layer) CloseCalls() int {
	return int(m.closeCalls.Load())
}
