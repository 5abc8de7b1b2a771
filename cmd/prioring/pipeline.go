package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/prioring/config"
	"github.com/c360/prioring/errors"
	"github.com/c360/prioring/metric"
	"github.com/c360/prioring/pkg/pump"
	"github.com/c360/prioring/pkg/retry"
	"github.com/c360/prioring/pkg/ringbuffer"
	"github.com/c360/prioring/pkg/worker"
)

// pipeline wires one ring to its producers, drainer and worker pool.
//
//	producer per lane -> ring -> drainer -> worker pool
type pipeline struct {
	name   string
	cfg    config.RingConfig
	logger *slog.Logger

	ring    *ringbuffer.PriorityRingBuffer
	pool    *worker.Pool[pump.Item]
	drainer *pump.Drainer

	produced []atomic.Int64
	dropped  []atomic.Int64
	consumed []atomic.Int64
}

func newPipeline(name string, cfg config.RingConfig, registry *metric.MetricsRegistry, logger *slog.Logger) (*pipeline, error) {
	logger = logger.With("ring", name)

	opts := []ringbuffer.Option{
		ringbuffer.WithLogger(logger),
		ringbuffer.WithMetrics(registry, name),
	}
	if cfg.MaxMemory > 0 {
		opts = append(opts, ringbuffer.WithMaxMemory(int(cfg.MaxMemory)))
	}
	ring, err := ringbuffer.New(cfg.Geometry(), opts...)
	if err != nil {
		return nil, fmt.Errorf("register ring %s: %w", name, err)
	}

	p := &pipeline{
		name:     name,
		cfg:      cfg,
		logger:   logger,
		ring:     ring,
		produced: make([]atomic.Int64, ring.Lanes()),
		dropped:  make([]atomic.Int64, ring.Lanes()),
		consumed: make([]atomic.Int64, ring.Lanes()),
	}

	p.pool = worker.NewPool(cfg.Drain.Workers, cfg.Drain.QueueSize,
		pump.Instrument(registry, p.consume),
		worker.WithName[pump.Item](name),
		worker.WithLogger[pump.Item](logger),
		worker.WithMetricsRegistry[pump.Item](registry),
	)

	p.drainer, err = pump.NewDrainer(ring, p.pool,
		pump.WithInterval(cfg.Drain.Interval),
		pump.WithBatch(cfg.Drain.Batch),
		pump.WithLogger(logger),
	)
	if err != nil {
		_ = ring.UnRegister()
		return nil, fmt.Errorf("create drainer for %s: %w", name, err)
	}

	return p, nil
}

// consume is the worker pool processor
func (p *pipeline) consume(_ context.Context, item pump.Item) error {
	if int(item.Lane) >= len(p.consumed) {
		return fmt.Errorf("item %s from unknown lane %d", item.ID, item.Lane)
	}
	p.consumed[item.Lane].Add(1)
	p.logger.Debug("Item consumed", "id", item.ID, "lane", item.Lane, "payload", payloadText(item.Data))
	return nil
}

// start launches the pool, the drainer and one producer per lane. Producers
// and the drainer stop when ctx is done; the pool keeps running until stop.
func (p *pipeline) start(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) error {
	if err := p.pool.Start(context.Background()); err != nil {
		return fmt.Errorf("start pool %s: %w", p.name, err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.drainer.Run(ctx); err != nil {
			errCh <- fmt.Errorf("drainer %s: %w", p.name, err)
		}
	}()

	if p.cfg.ProduceInterval <= 0 {
		return nil
	}
	for lane := 0; lane < p.ring.Lanes(); lane++ {
		wg.Add(1)
		go func(lane uint8) {
			defer wg.Done()
			p.produce(ctx, lane)
		}(uint8(lane))
	}
	return nil
}

// produce is the single producer of lane
func (p *pipeline) produce(ctx context.Context, lane uint8) {
	ticker := time.NewTicker(p.cfg.ProduceInterval)
	defer ticker.Stop()

	buf := make([]byte, 0, p.ring.SlotSize())
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		seq++
		buf = appendPayload(buf[:0], lane, seq, p.ring.SlotSize())
		err := pump.PushWithRetry(ctx, p.ring, lane, buf, retry.Backpressure())
		switch {
		case err == nil:
			p.produced[lane].Add(1)
		case stderrors.Is(err, errors.ErrLaneFull):
			p.dropped[lane].Add(1)
			p.logger.Debug("Lane stayed full, item dropped", "lane", lane, "seq", seq)
		case ctx.Err() != nil:
			return
		default:
			p.logger.Error("Producer stopped", "lane", lane, "error", err)
			return
		}
	}
}

// flush hands every item still in the ring to the pool, then stops the pool.
func (p *pipeline) flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n, err := p.drainer.Drain()
		if err != nil && !errors.IsTransient(err) {
			return fmt.Errorf("flush %s: %w", p.name, err)
		}
		if n == 0 && err == nil && !p.drainer.Stats().Pending {
			break
		}
		if err != nil {
			time.Sleep(time.Millisecond)
		}
	}
	return p.pool.Stop(time.Until(deadline))
}

// ringSummary is the end of run report for one ring
type ringSummary struct {
	Ring     string                  `json:"ring"`
	Lanes    int                     `json:"lanes"`
	Produced []int64                 `json:"produced"`
	Dropped  []int64                 `json:"dropped"`
	Consumed []int64                 `json:"consumed"`
	Stats    ringbuffer.StatsSummary `json:"stats"`
	Drainer  pump.DrainerStats       `json:"drainer"`
	Pool     worker.PoolStats        `json:"pool"`
}

func (p *pipeline) summary() ringSummary {
	s := ringSummary{
		Ring:     p.name,
		Lanes:    len(p.produced),
		Produced: loadAll(p.produced),
		Dropped:  loadAll(p.dropped),
		Consumed: loadAll(p.consumed),
		Drainer:  p.drainer.Stats(),
		Pool:     p.pool.Stats(),
	}
	if stats := p.ring.Stats(); stats != nil {
		s.Stats = stats.Summary()
	}
	return s
}

func (p *pipeline) close() error {
	return p.ring.UnRegister()
}

func loadAll(counters []atomic.Int64) []int64 {
	out := make([]int64, len(counters))
	for i := range counters {
		out[i] = counters[i].Load()
	}
	return out
}

// appendPayload writes "L<lane>#<seq>" truncated to size bytes
func appendPayload(buf []byte, lane uint8, seq uint64, size int) []byte {
	buf = fmt.Appendf(buf, "L%d#%d", lane, seq)
	if len(buf) > size {
		buf = buf[:size]
	}
	return buf
}

// payloadText trims the zero padding of a popped slot
func payloadText(data []byte) string {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	return string(data[:end])
}
