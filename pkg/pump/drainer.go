package pump

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/prioring/errors"
	"github.com/c360/prioring/metric"
)

// Item is one slot popped from a ring.
type Item struct {
	ID       string    `json:"id"`
	Ring     string    `json:"ring"`
	Lane     uint8     `json:"lane"`
	Data     []byte    `json:"data"`
	PoppedAt time.Time `json:"popped_at"`
}

// Popper is the consumer side of a ring.
type Popper interface {
	PopLane(out []byte) (uint8, error)
	SlotSize() int
	Name() string
}

// Submitter accepts drained items, typically a *worker.Pool[Item].
type Submitter interface {
	Submit(item Item) error
}

// Drainer is the single consumer of a ring. It pops items in priority order
// and submits them downstream. An item the submitter rejects is held and
// offered again on the next pass, so nothing popped is lost and no further
// items are popped until it is accepted.
type Drainer struct {
	ring     Popper
	sink     Submitter
	interval time.Duration
	batch    int
	logger   *slog.Logger

	buf     []byte
	pending *Item

	running atomic.Bool
	holding atomic.Bool

	drained  atomic.Int64
	rejected atomic.Int64
	idle     atomic.Int64
	failed   atomic.Int64
}

// DrainerOption configures a Drainer
type DrainerOption func(*Drainer)

// WithInterval sets how often the ring is polled. Defaults to 1ms.
func WithInterval(d time.Duration) DrainerOption {
	return func(dr *Drainer) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithBatch bounds the number of items popped per poll. Defaults to 64.
func WithBatch(n int) DrainerOption {
	return func(dr *Drainer) {
		if n > 0 {
			dr.batch = n
		}
	}
}

// WithLogger sets the drainer logger.
func WithLogger(logger *slog.Logger) DrainerOption {
	return func(dr *Drainer) {
		if logger != nil {
			dr.logger = logger
		}
	}
}

// NewDrainer creates a drainer for ring feeding sink.
func NewDrainer(ring Popper, sink Submitter, opts ...DrainerOption) (*Drainer, error) {
	if ring == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Drainer", "NewDrainer", "check ring")
	}
	if sink == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Drainer", "NewDrainer", "check sink")
	}
	if ring.SlotSize() <= 0 {
		return nil, errors.WrapInvalid(errors.ErrNotRegistered, "Drainer", "NewDrainer", "check ring")
	}

	d := &Drainer{
		ring:     ring,
		sink:     sink,
		interval: time.Millisecond,
		batch:    64,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.buf = make([]byte, ring.SlotSize())
	return d, nil
}

// Run polls the ring until ctx is cancelled. It returns ErrAlreadyStarted if
// the drainer is already running, and nil on cancellation.
func (d *Drainer) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Drainer", "Run", "start")
	}
	defer d.running.Store(false)

	d.logger.Debug("Drainer started", "ring", d.ring.Name(), "interval", d.interval, "batch", d.batch)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("Drainer stopped", "ring", d.ring.Name(), "drained", d.drained.Load())
			return nil
		case <-ticker.C:
			if _, err := d.Drain(); err != nil && !errors.IsTransient(err) {
				d.logger.Error("Drainer stopped on ring error", "ring", d.ring.Name(), "error", err)
				return err
			}
		}
	}
}

// Drain pops and submits up to the batch size of items and returns how many
// were submitted. A full submitter ends the pass with the transient error.
// Drain must not be called concurrently with Run or itself.
func (d *Drainer) Drain() (int, error) {
	submitted := 0

	if d.pending != nil {
		if err := d.sink.Submit(*d.pending); err != nil {
			d.rejected.Add(1)
			return 0, err
		}
		d.pending = nil
		d.holding.Store(false)
		d.drained.Add(1)
		submitted++
	}

	for submitted < d.batch {
		lane, err := d.ring.PopLane(d.buf)
		if stderrors.Is(err, errors.ErrNoData) {
			d.idle.Add(1)
			return submitted, nil
		}
		if err != nil {
			d.failed.Add(1)
			return submitted, err
		}

		item := Item{
			ID:       uuid.NewString(),
			Ring:     d.ring.Name(),
			Lane:     lane,
			Data:     append([]byte(nil), d.buf...),
			PoppedAt: time.Now(),
		}
		if err := d.sink.Submit(item); err != nil {
			d.pending = &item
			d.holding.Store(true)
			d.rejected.Add(1)
			return submitted, err
		}
		d.drained.Add(1)
		submitted++
	}

	return submitted, nil
}

// DrainerStats is a snapshot of drainer activity.
type DrainerStats struct {
	Drained  int64 `json:"drained"`
	Rejected int64 `json:"rejected"`
	Idle     int64 `json:"idle"`
	Failed   int64 `json:"failed"`
	Pending  bool  `json:"pending"`
}

// Stats returns the drainer statistics.
func (d *Drainer) Stats() DrainerStats {
	return DrainerStats{
		Drained:  d.drained.Load(),
		Rejected: d.rejected.Load(),
		Idle:     d.idle.Load(),
		Failed:   d.failed.Load(),
		Pending:  d.holding.Load(),
	}
}

// Instrument wraps an item processor so each call is recorded in the core
// drain metrics of registry, labelled with the item's ring.
func Instrument(registry *metric.MetricsRegistry, fn func(context.Context, Item) error) func(context.Context, Item) error {
	if registry == nil {
		return fn
	}
	core := registry.CoreMetrics()
	return func(ctx context.Context, item Item) error {
		start := time.Now()
		err := fn(ctx, item)
		status := "success"
		if err != nil {
			status = "error"
		}
		core.RecordItemProcessed(item.Ring, status, time.Since(start))
		return err
	}
}
