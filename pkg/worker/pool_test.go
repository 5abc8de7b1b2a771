package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prerrors "github.com/c360/prioring/errors"
	"github.com/c360/prioring/metric"
)

// frame is a drained ring item as the pump hands it to the pool.
type frame struct {
	lane  uint8
	data  []byte
	delay time.Duration
	fail  bool
}

func TestNewPool(t *testing.T) {
	processor := func(context.Context, frame) error { return nil }

	pool := NewPool(5, 100, processor)
	if pool.workers != 5 {
		t.Errorf("Expected 5 workers, got %d", pool.workers)
	}
	if pool.queueSize != 100 {
		t.Errorf("Expected queue size 100, got %d", pool.queueSize)
	}
	if pool.Name() != "worker" {
		t.Errorf("Expected default name, got %q", pool.Name())
	}

	pool = NewPool(0, 0, processor, WithName[frame]("uplink"))
	if pool.workers != 10 {
		t.Errorf("Expected default 10 workers, got %d", pool.workers)
	}
	if pool.queueSize != 1000 {
		t.Errorf("Expected default queue size 1000, got %d", pool.queueSize)
	}
	if pool.Name() != "uplink" {
		t.Errorf("Expected name uplink, got %q", pool.Name())
	}
}

func TestNewPool_NilProcessor(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[frame](5, 100, nil)
	})
}

func TestPool_StartStopDrainsQueue(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(2, 10, func(_ context.Context, f frame) error {
		time.Sleep(f.delay)
		processed.Add(1)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(frame{lane: uint8(i % 2), delay: 5 * time.Millisecond}))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(8), processed.Load(), "queued items are processed before Stop returns")

	assert.NoError(t, pool.Stop(time.Second), "Stop is idempotent")
}

func TestPool_SentinelErrors(t *testing.T) {
	noop := func(context.Context, frame) error { return nil }

	t.Run("submit before start", func(t *testing.T) {
		pool := NewPool(1, 1, noop)
		err := pool.Submit(frame{})
		assert.ErrorIs(t, err, ErrPoolNotStarted)
		assert.ErrorIs(t, err, prerrors.ErrNotStarted)
	})

	t.Run("start twice", func(t *testing.T) {
		pool := NewPool(1, 1, noop)
		require.NoError(t, pool.Start(context.Background()))
		defer pool.Stop(time.Second)
		assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
	})

	t.Run("submit after stop", func(t *testing.T) {
		pool := NewPool(1, 1, noop)
		require.NoError(t, pool.Start(context.Background()))
		require.NoError(t, pool.Stop(time.Second))
		assert.ErrorIs(t, pool.Submit(frame{}), ErrPoolStopped)
		assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolStopped)
	})

	t.Run("restart after stop", func(t *testing.T) {
		pool := NewPool(1, 1, noop)
		require.NoError(t, pool.Start(context.Background()))
		require.NoError(t, pool.Stop(time.Second))
		err := pool.Start(context.Background())
		assert.ErrorIs(t, err, ErrPoolStopped)
		assert.NotErrorIs(t, err, ErrPoolAlreadyStarted)
	})

	t.Run("stop before start", func(t *testing.T) {
		pool := NewPool(1, 1, noop)
		assert.NoError(t, pool.Stop(time.Second))
	})
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool(1, 2, func(_ context.Context, _ frame) error {
		<-release
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	// one item held by the worker, two queued
	require.NoError(t, pool.Submit(frame{}))
	require.Eventually(t, func() bool { return pool.Stats().Busy == 1 }, time.Second, time.Millisecond)
	require.NoError(t, pool.Submit(frame{}))
	require.NoError(t, pool.Submit(frame{}))

	err := pool.Submit(frame{})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, prerrors.IsTransient(err))

	close(release)
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.Submitted)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestPool_ProcessingErrors(t *testing.T) {
	pool := NewPool(2, 10, func(_ context.Context, f frame) error {
		if f.fail {
			return errors.New("simulated error")
		}
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(frame{fail: i%2 == 0}))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	if stats.Processed != 10 {
		t.Errorf("Expected 10 processed items in stats, got %d", stats.Processed)
	}
	if stats.Failed != 5 {
		t.Errorf("Expected 5 failed items in stats, got %d", stats.Failed)
	}
}

func TestPool_PanicRecovered(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	var ok atomic.Int64
	pool := NewPool(1, 4, func(_ context.Context, f frame) error {
		if f.fail {
			panic("bad frame")
		}
		ok.Add(1)
		return nil
	}, WithLogger[frame](logger))

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(frame{fail: true}))
	require.NoError(t, pool.Submit(frame{}))
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Panicked)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), ok.Load(), "worker survives a panic")
	assert.Contains(t, logs.String(), "Worker processor panicked")
}

func TestPool_ContextCancellation(t *testing.T) {
	started := make(chan struct{}, 1)
	pool := NewPool(1, 10, func(ctx context.Context, _ frame) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Submit(frame{}))
	require.NoError(t, pool.Submit(frame{}))

	<-started
	cancel()

	require.NoError(t, pool.Stop(5*time.Second))
	stats := pool.Stats()
	// the worker may pick up one more item while it notices the cancellation
	assert.GreaterOrEqual(t, stats.Processed, int64(1))
	assert.LessOrEqual(t, stats.Processed, int64(2))
	assert.Equal(t, stats.Processed, stats.Failed)
}

func TestPool_ConcurrentSubmissions(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(5, 100, func(context.Context, frame) error {
		processed.Add(1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	var wg sync.WaitGroup
	for s := 0; s < 10; s++ {
		wg.Add(1)
		go func(lane uint8) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := pool.Submit(frame{lane: lane, data: []byte{byte(j)}}); err != nil {
					t.Errorf("Submitter %d failed to submit work %d: %v", lane, j, err)
				}
			}
		}(uint8(s))
	}
	wg.Wait()

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(100), processed.Load())
}

func TestPool_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	pool := NewPool(1, 1, func(context.Context, frame) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(frame{}))
	require.Eventually(t, func() bool { return pool.Stats().Busy == 1 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, pool.Stop(20*time.Millisecond), ErrStopTimeout)
	assert.ErrorIs(t, pool.Submit(frame{}), ErrPoolStopped)
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	pool := NewPool(2, 10, func(_ context.Context, f frame) error {
		if f.fail {
			return errors.New("boom")
		}
		return nil
	}, WithName[frame]("drain"), WithMetricsRegistry[frame](registry))

	for _, name := range poolMetricNames {
		assert.True(t, registry.Registered("drain", name), name)
	}

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(frame{}))
	require.NoError(t, pool.Submit(frame{fail: true}))
	require.NoError(t, pool.Submit(frame{}))

	require.Eventually(t, func() bool { return pool.Stats().Processed == 3 }, time.Second, time.Millisecond)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				values[mf.GetName()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, values["prioring_worker_submitted_total"])
	assert.Equal(t, 3.0, values["prioring_worker_processed_total"])
	assert.Equal(t, 1.0, values["prioring_worker_failed_total"])

	require.NoError(t, pool.Stop(5*time.Second))
	for _, name := range poolMetricNames {
		assert.False(t, registry.Registered("drain", name), name)
	}
}

func TestPool_MetricsNameClash(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	noop := func(context.Context, frame) error { return nil }

	first := NewPool(1, 1, noop, WithName[frame]("same"), WithMetricsRegistry[frame](registry))
	second := NewPool(1, 1, noop, WithName[frame]("same"), WithMetricsRegistry[frame](registry),
		WithLogger[frame](slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	assert.NotNil(t, first.metrics)
	assert.Nil(t, second.metrics)
	assert.True(t, registry.Registered("same", poolMetricNames[0]), "first pool keeps its metrics")
}
