// Package batching decouples producers from slow sinks: items are queued on a
// bounded channel, grouped into batches and handed to a Processor with a
// bounded number of batches in flight.
package batching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"edge-gateway/internal/common/logging"
)

// ErrClosed is returned by Enqueue once Close has been called.
var ErrClosed = errors.New("batching queue closed")

// Processor consumes one batch. A returned error drops the batch.
type Processor[T any] interface {
	Process(ctx context.Context, batch []T) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc[T any] func(ctx context.Context, batch []T) error

func (f ProcessorFunc[T]) Process(ctx context.Context, batch []T) error {
	return f(ctx, batch)
}

// Config tunes a Queue.
type Config struct {
	// BatchSize flushes a batch as soon as it holds this many items.
	BatchSize int
	// Consumers bounds the number of batches processed concurrently.
	Consumers int
	// MaxWait flushes a partial batch this long after its first item arrived.
	MaxWait time.Duration
}

func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Consumers < 1 {
		return fmt.Errorf("consumers must be positive, got %d", c.Consumers)
	}
	if c.MaxWait <= 0 {
		return fmt.Errorf("max wait must be positive, got %v", c.MaxWait)
	}
	return nil
}

// Stats are cumulative counters.
type Stats struct {
	Enqueued  int64
	Batches   int64
	Processed int64
	Dropped   int64
}

// Queue is a generic bounded batching queue.
type Queue[T any] struct {
	config    Config
	processor Processor[T]
	logger    logging.Logger

	items    chan T
	sem      *semaphore.Weighted
	inflight sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc

	enqueued  atomic.Int64
	batches   atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
}

// New validates config and starts the drain loop.
func New[T any](config Config, processor Processor[T], logger logging.Logger) (*Queue[T], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if processor == nil {
		return nil, errors.New("batching queue requires a processor")
	}
	if logger == nil {
		logger = logging.Component("batching")
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	q := &Queue[T]{
		config:    config,
		processor: processor,
		logger:    logger,
		items:     make(chan T, config.BatchSize*config.Consumers),
		sem:       semaphore.NewWeighted(int64(config.Consumers)),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	go q.drain()
	return q, nil
}

// Enqueue adds item, blocking while the queue is full.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- item:
		q.enqueued.Add(1)
		return nil
	case <-q.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake, flushes what is queued and waits for in-flight batches.
// If ctx ends first, in-flight processing is cancelled and ctx's error returned.
func (q *Queue[T]) Close(ctx context.Context) error {
	q.closeOnce.Do(func() {
		close(q.closing)
		q.mu.Lock()
		q.closed = true
		close(q.items)
		q.mu.Unlock()
	})

	select {
	case <-q.done:
		q.runCancel()
		return nil
	case <-ctx.Done():
		q.runCancel()
		return ctx.Err()
	}
}

func (q *Queue[T]) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Batches:   q.batches.Load(),
		Processed: q.processed.Load(),
		Dropped:   q.dropped.Load(),
	}
}

func (q *Queue[T]) drain() {
	defer close(q.done)
	defer q.inflight.Wait()

	batch := make([]T, 0, q.config.BatchSize)
	var (
		timer  *time.Timer
		expiry <-chan time.Time
	)
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, expiry = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		q.dispatch(batch)
		batch = make([]T, 0, q.config.BatchSize)
	}

	for {
		select {
		case item, ok := <-q.items:
			if !ok {
				flush()
				return
			}
			batch = append(batch, item)
			if len(batch) == 1 {
				timer = time.NewTimer(q.config.MaxWait)
				expiry = timer.C
			}
			if len(batch) >= q.config.BatchSize {
				flush()
			}
		case <-expiry:
			timer, expiry = nil, nil
			flush()
		}
	}
}

// dispatch blocks until a consumer slot is free, which in turn stalls the
// drain loop and eventually producers.
func (q *Queue[T]) dispatch(batch []T) {
	if err := q.sem.Acquire(q.runCtx, 1); err != nil {
		q.dropped.Add(int64(len(batch)))
		q.logger.Warn("Dropping batch, queue is shutting down", logging.Int("size", len(batch)))
		return
	}

	q.batches.Add(1)
	q.inflight.Add(1)
	go func() {
		defer q.inflight.Done()
		defer q.sem.Release(1)

		if err := q.processor.Process(q.runCtx, batch); err != nil {
			q.dropped.Add(int64(len(batch)))
			q.logger.Error("Batch processing failed, dropping batch", err, logging.Int("size", len(batch)))
			return
		}
		q.processed.Add(int64(len(batch)))
	}()
}
