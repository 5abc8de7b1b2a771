package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/prioring/metric"
)

// Pool processes work items of type T on a fixed number of goroutines fed
// from a bounded queue.
type Pool[T any] struct {
	// Configuration
	name      string
	workers   int
	queueSize int
	processor func(context.Context, T) error
	logger    *slog.Logger

	// Runtime state
	workChan chan T
	quit     chan struct{}
	metrics  *poolMetrics
	wg       sync.WaitGroup

	// Lifecycle management
	lifecycleMu sync.RWMutex
	started     bool
	stopped     bool

	// Statistics
	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	panicked  atomic.Int64
	busy      atomic.Int64

	metricsRegistry *metric.MetricsRegistry
}

// poolMetrics holds Prometheus metrics for worker pool monitoring
type poolMetrics struct {
	queueDepth     prometheus.Gauge
	utilization    prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

var poolMetricNames = []string{
	"worker_queue_depth", "worker_utilization", "worker_submitted", "worker_processed",
	"worker_failed", "worker_dropped", "worker_duration",
}

// Option configures a worker pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry registers the pool's metrics with registry, labelled
// with the pool name.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
	}
}

// WithName sets the pool name used in logs and as the metrics label.
func WithName[T any](name string) Option[T] {
	return func(p *Pool[T]) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets the logger for lifecycle events and processor panics.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(p *Pool[T]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool creates a worker pool. Non-positive workers or queueSize fall
// back to 10 and 1000. It panics if processor is nil.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		name:      "worker",
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		logger:    slog.Default(),
		workChan:  make(chan T, queueSize),
		quit:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(pool)
	}

	if pool.metricsRegistry != nil {
		if err := pool.initializeMetrics(); err != nil {
			pool.logger.Warn("Worker pool metrics disabled", "pool", pool.name, "error", err)
		}
	}

	return pool
}

// initializeMetrics creates the pool collectors and registers them under the
// pool name. On failure nothing stays registered and metrics stay disabled.
func (p *Pool[T]) initializeMetrics() error {
	labels := prometheus.Labels{"pool": p.name}

	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "queue_depth",
			ConstLabels: labels,
			Help:        "Current worker pool queue depth",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Fraction of workers busy processing (0-1)",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "submitted_total",
			ConstLabels: labels,
			Help:        "Total work items submitted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "processed_total",
			ConstLabels: labels,
			Help:        "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "failed_total",
			ConstLabels: labels,
			Help:        "Total work items that failed processing",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "dropped_total",
			ConstLabels: labels,
			Help:        "Total work items rejected because the queue was full",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "processing_duration_seconds",
			ConstLabels: labels,
			Help:        "Time spent processing work items",
			Buckets:     []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"status"}),
	}

	reg := p.metricsRegistry
	steps := []func() error{
		func() error { return reg.RegisterGauge(p.name, poolMetricNames[0], m.queueDepth) },
		func() error { return reg.RegisterGauge(p.name, poolMetricNames[1], m.utilization) },
		func() error { return reg.RegisterCounter(p.name, poolMetricNames[2], m.submitted) },
		func() error { return reg.RegisterCounter(p.name, poolMetricNames[3], m.processed) },
		func() error { return reg.RegisterCounter(p.name, poolMetricNames[4], m.failed) },
		func() error { return reg.RegisterCounter(p.name, poolMetricNames[5], m.dropped) },
		func() error { return reg.RegisterHistogramVec(p.name, poolMetricNames[6], m.processingTime) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			for _, name := range poolMetricNames[:i] {
				reg.Unregister(p.name, name)
			}
			return err
		}
	}

	p.metrics = m
	return nil
}

// Submit queues work without blocking. It returns ErrQueueFull when the
// queue is at capacity.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.RLock()
	defer p.lifecycleMu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if !p.started {
		return ErrPoolNotStarted
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Start launches the workers. They run until ctx is cancelled or Stop
// drains the queue.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	if p.metrics != nil {
		p.wg.Add(1)
		go p.metricsUpdater(ctx)
	}

	p.started = true
	p.logger.Debug("Worker pool started", "pool", p.name, "workers", p.workers, "queue_size", p.queueSize)
	return nil
}

// Stop closes the queue and waits up to timeout for workers to finish the
// items already queued. Stop is idempotent.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.workChan)
	close(p.quit)
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.unregisterMetrics()
		p.logger.Debug("Worker pool stopped", "pool", p.name, "processed", p.processed.Load())
		return nil
	case <-timer.C:
		p.logger.Warn("Worker pool stop timed out", "pool", p.name, "timeout", timeout)
		return ErrStopTimeout
	}
}

func (p *Pool[T]) unregisterMetrics() {
	if p.metrics == nil {
		return
	}
	for _, name := range poolMetricNames {
		p.metricsRegistry.Unregister(p.name, name)
	}
}

// Name returns the pool name.
func (p *Pool[T]) Name() string {
	return p.name
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Busy:       p.busy.Load(),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
		Panicked:   p.panicked.Load(),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Busy       int64 `json:"busy"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
	Panicked   int64 `json:"panicked"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}
			p.process(ctx, work)
		}
	}
}

// process runs the processor for one item. A panicking processor counts as
// a failure and does not take the worker down.
func (p *Pool[T]) process(ctx context.Context, work T) {
	p.busy.Add(1)
	start := time.Now()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.panicked.Add(1)
				err = fmt.Errorf("processor panic: %v", r)
				p.logger.Error("Worker processor panicked", "pool", p.name, "panic", r)
			}
		}()
		err = p.processor(ctx, work)
	}()

	duration := time.Since(start)
	p.busy.Add(-1)
	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
	}

	if p.metrics != nil {
		p.metrics.processed.Inc()
		status := "success"
		if err != nil {
			p.metrics.failed.Inc()
			status = "error"
		}
		p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// metricsUpdater periodically refreshes the queue depth and utilization gauges
func (p *Pool[T]) metricsUpdater(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-ticker.C:
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
			p.metrics.utilization.Set(float64(p.busy.Load()) / float64(p.workers))
		}
	}
}
