package batching

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
	flushed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{flushed: make(chan struct{}, 64)}
}

func (r *recorder) Process(_ context.Context, batch []int) error {
	r.mu.Lock()
	r.batches = append(r.batches, append([]int(nil), batch...))
	r.mu.Unlock()
	r.flushed <- struct{}{}
	return nil
}

func (r *recorder) snapshot() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]int(nil), r.batches...)
}

func waitFlush(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case <-r.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{BatchSize: 0, Consumers: 1, MaxWait: time.Second}.Validate())
	assert.Error(t, Config{BatchSize: 1, Consumers: 0, MaxWait: time.Second}.Validate())
	assert.Error(t, Config{BatchSize: 1, Consumers: 1}.Validate())
	assert.NoError(t, Config{BatchSize: 1, Consumers: 1, MaxWait: time.Second}.Validate())
}

func TestQueue_FullBatchFlushesOnce(t *testing.T) {
	rec := newRecorder()
	q, err := New[int](Config{BatchSize: 5, Consumers: 2, MaxWait: time.Hour}, rec, nil)
	require.NoError(t, err)
	defer q.Close(context.Background())

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), i))
	}
	waitFlush(t, rec)

	// nothing else may arrive: the batch was exactly full
	select {
	case <-rec.flushed:
		t.Fatal("unexpected second flush")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, rec.snapshot())
}

func TestQueue_PartialBatchFlushesAfterMaxWait(t *testing.T) {
	rec := newRecorder()
	q, err := New[int](Config{BatchSize: 10, Consumers: 1, MaxWait: 30 * time.Millisecond}, rec, nil)
	require.NoError(t, err)
	defer q.Close(context.Background())

	start := time.Now()
	require.NoError(t, q.Enqueue(context.Background(), 7))
	require.NoError(t, q.Enqueue(context.Background(), 8))
	waitFlush(t, rec)

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, [][]int{{7, 8}}, rec.snapshot())
}

func TestQueue_Backpressure(t *testing.T) {
	release := make(chan struct{})
	processor := ProcessorFunc[int](func(context.Context, []int) error {
		<-release
		return nil
	})
	q, err := New[int](Config{BatchSize: 1, Consumers: 1, MaxWait: time.Hour}, processor, nil)
	require.NoError(t, err)

	// one batch processing, one waiting for a permit, one buffered
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.Eventually(t, func() bool {
		return errors.Is(q.Enqueue(ctx, 99), context.DeadlineExceeded)
	}, time.Second, 10*time.Millisecond)

	close(release)
	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int64(3), q.Stats().Processed)
}

func TestQueue_BoundsConcurrentBatches(t *testing.T) {
	var active, peak atomic.Int32
	processor := ProcessorFunc[int](func(context.Context, []int) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil
	})
	q, err := New[int](Config{BatchSize: 1, Consumers: 2, MaxWait: time.Hour}, processor, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(context.Background(), i))
	}
	require.NoError(t, q.Close(context.Background()))

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(20), q.Stats().Processed)
}

func TestQueue_FailedBatchIsDropped(t *testing.T) {
	var calls atomic.Int32
	processor := ProcessorFunc[int](func(context.Context, []int) error {
		calls.Add(1)
		return errors.New("sink unavailable")
	})
	q, err := New[int](Config{BatchSize: 2, Consumers: 1, MaxWait: time.Hour}, processor, nil)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(context.Background(), 1))
	require.NoError(t, q.Enqueue(context.Background(), 2))
	require.NoError(t, q.Close(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(2), q.Stats().Dropped)
	assert.Equal(t, int64(0), q.Stats().Processed)
}

func TestQueue_CloseFlushesRemainderAndRejectsNewItems(t *testing.T) {
	rec := newRecorder()
	q, err := New[int](Config{BatchSize: 10, Consumers: 1, MaxWait: time.Hour}, rec, nil)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(context.Background(), 1))
	require.NoError(t, q.Close(context.Background()))

	assert.Equal(t, [][]int{{1}}, rec.snapshot())
	assert.ErrorIs(t, q.Enqueue(context.Background(), 2), ErrClosed)
	assert.NoError(t, q.Close(context.Background()))
}

func TestQueue_CloseTimesOut(t *testing.T) {
	processor := ProcessorFunc[int](func(ctx context.Context, _ []int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	q, err := New[int](Config{BatchSize: 1, Consumers: 1, MaxWait: time.Hour}, processor, nil)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
}
