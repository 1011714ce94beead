package writer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"txn-insights/pkg/cache"
	"txn-insights/pkg/logging"

	"go.uber.org/zap"
)

// AsyncWriter is a write-behind cache.Layer. Reads and deletes go straight
// to the wrapped layer; Set only enqueues the value and a worker pool writes
// it later, so a slow shared layer never delays a response that was already
// computed. Writes for one key are applied in order when Workers is 1.
type AsyncWriter struct {
	layer      cache.Layer
	queue      chan writeOp
	workers    int
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	config     AsyncWriterConfig
	logger     *logging.Logger

	// mu orders enqueues before Close: once closed is set no op can
	// reach the queue after the workers have drained it.
	mu     sync.RWMutex
	closed bool

	// Statistics (accessed atomically)
	droppedWrites atomic.Int64
	totalWrites   atomic.Int64
	failedWrites  atomic.Int64
	pending       atomic.Int64
}

var _ cache.Layer = (*AsyncWriter)(nil)

// writeOp represents a pending write operation.
type writeOp struct {
	key   string
	value []byte
	ttl   time.Duration
}

// AsyncWriterConfig configures the async writer behavior.
type AsyncWriterConfig struct {
	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int

	// Workers is the number of concurrent workers (default: 2)
	Workers int

	// MaxWaitTime is the max time to wait if queue is full (default: 10ms)
	MaxWaitTime time.Duration

	// WriteTimeout bounds each write to the wrapped layer (default: 3s)
	WriteTimeout time.Duration
}

// NewAsyncWriter wraps layer and starts the worker pool. It must be closed
// with Close.
func NewAsyncWriter(layer cache.Layer, config AsyncWriterConfig) *AsyncWriter {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime <= 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &AsyncWriter{
		layer:      layer,
		queue:      make(chan writeOp, config.QueueSize),
		workers:    config.Workers,
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logging.L().Named("writer").With(logging.Layer(layer.Name())),
	}

	for i := 0; i < config.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}

	return w
}

// Write enqueues a copy of value. If the queue is full it waits up to
// MaxWaitTime and then drops the write with ErrQueueFull.
func (w *AsyncWriter) Write(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	op := writeOp{
		key:   key,
		value: append([]byte(nil), value...),
		ttl:   ttl,
	}

	timer := time.NewTimer(w.config.MaxWaitTime)
	defer timer.Stop()

	w.pending.Add(1)
	select {
	case w.queue <- op:
		w.totalWrites.Add(1)
		return nil
	case <-timer.C:
		w.pending.Add(-1)
		w.droppedWrites.Add(1)
		return ErrQueueFull
	case <-ctx.Done():
		w.pending.Add(-1)
		return ctx.Err()
	}
}

// Get implements cache.Layer.
func (w *AsyncWriter) Get(ctx context.Context, key string) ([]byte, error) {
	return w.layer.Get(ctx, key)
}

// Set implements cache.Layer by enqueueing the write. A dropped write is
// not an error for the caller: the value is still served from the layers
// above and will be stored again on the next miss.
func (w *AsyncWriter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := w.Write(ctx, key, value, ttl)
	if errors.Is(err, ErrQueueFull) {
		w.logger.Debug("write dropped", zap.String("key", key))
		return nil
	}
	return err
}

// Delete implements cache.Layer.
func (w *AsyncWriter) Delete(ctx context.Context, key string) error {
	return w.layer.Delete(ctx, key)
}

// Name implements cache.Layer.
func (w *AsyncWriter) Name() string {
	return w.layer.Name()
}

// worker processes write operations from the queue.
func (w *AsyncWriter) worker() {
	defer w.wg.Done()

	for {
		select {
		case op := <-w.queue:
			w.apply(op)
		case <-w.ctx.Done():
			// Drain remaining items in queue before exiting
			for {
				select {
				case op := <-w.queue:
					w.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (w *AsyncWriter) apply(op writeOp) {
	defer w.pending.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	if err := w.layer.Set(ctx, op.key, op.value, op.ttl); err != nil {
		w.failedWrites.Add(1)
		w.logger.Warn("async write failed",
			zap.String("key", op.key),
			zap.String("error_type", cache.ClassifyError(err)),
			zap.Error(err),
		)
	}
}

// Flush waits until every accepted write has been applied, or timeout.
func (w *AsyncWriter) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if w.pending.Load() == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}

		time.Sleep(5 * time.Millisecond)
	}
}

// Close stops accepting writes, applies the queued ones and closes the
// wrapped layer. Writes already waiting for queue space finish first.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancelFunc()
	w.wg.Wait()
	return w.layer.Close()
}

// Stats returns current statistics about the async writer.
func (w *AsyncWriter) Stats() AsyncWriterStats {
	return AsyncWriterStats{
		QueueDepth:    len(w.queue),
		DroppedWrites: w.droppedWrites.Load(),
		TotalWrites:   w.totalWrites.Load(),
		FailedWrites:  w.failedWrites.Load(),
	}
}
