package ringbuffer

import (
	"fmt"
	"log/slog"

	"github.com/c360/prioring/errors"
	"github.com/c360/prioring/metric"
)

// PriorityRingBuffer is a fixed-geometry ring of one or more FIFO lanes
// sharing one contiguous backing store laid out as store[lane][slot][byte].
//
// The zero value is Unregistered. Register makes it Active and UnRegister
// returns it to the zero value. Push and Pop are only valid while Active.
//
// Each lane may have one producer running concurrently with the single
// consumer. Register and UnRegister must not overlap any other call.
type PriorityRingBuffer struct {
	priorityEnabled bool
	laneCount       uint8
	slotCount       uint8
	slotSize        uint8

	lanes []lane
	store []byte

	name     string
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	stats    *Statistics
	metrics  *ringMetrics
}

// Register allocates the lanes and backing store and makes the ring Active.
// Either everything is allocated and committed, or the ring is left
// untouched and an error is returned:
//
//   - ErrInvalidParameter: nil handle, ring already Active, priority enabled
//     with priorityLevel 0, slotCount < 2 or slotSize 0
//   - ErrAllocationFailed: the backing store could not be allocated
func (b *PriorityRingBuffer) Register(priorityEnable bool, priorityLevel, slotCount, slotSize uint8, opts ...Option) error {
	if b == nil {
		return errRegisterNilHandle
	}
	if b.Active() {
		return errRegisterActive
	}

	g := Geometry{
		PriorityEnabled: priorityEnable,
		PriorityLevel:   priorityLevel,
		SlotCount:       slotCount,
		SlotSize:        slotSize,
	}
	if !priorityEnable {
		g.PriorityLevel = 1
	}

	o := applyOptions(opts...)

	if err := g.Validate(); err != nil {
		o.recordFailure("invalid_geometry")
		o.logger.Debug("Ring buffer registration rejected", "ring", o.name, "error", err)
		return err
	}

	lanes := g.Lanes()
	size := g.StoreSize()

	store, err := allocate(o, size)
	if err != nil {
		o.recordFailure("allocation")
		o.logger.Debug("Ring buffer allocation failed", "ring", o.name, "bytes", size, "error", err)
		return err
	}

	var metrics *ringMetrics
	if o.metricsReg != nil {
		metrics, err = newRingMetrics(o.metricsReg, o.name, lanes, int(slotCount)-1)
		if err != nil {
			o.recordFailure("metrics")
			return errors.WrapInvalid(joinSentinels(errors.ErrInvalidParameter, err),
				component, "Register", "register metrics")
		}
	}

	// Commit only after every allocation succeeded.
	*b = PriorityRingBuffer{
		priorityEnabled: priorityEnable,
		laneCount:       uint8(lanes),
		slotCount:       slotCount,
		slotSize:        slotSize,
		lanes:           make([]lane, lanes),
		store:           store,
		name:            o.name,
		logger:          o.logger,
		registry:        o.metricsReg,
		stats:           NewStatistics(lanes),
		metrics:         metrics,
	}

	if b.registry != nil {
		b.registry.CoreMetrics().RecordRegistered(1)
	}

	b.logger.Debug("Ring buffer registered",
		"ring", b.name,
		"priority_enabled", priorityEnable,
		"lanes", lanes,
		"slot_count", slotCount,
		"slot_size", slotSize,
		"bytes", size)

	return nil
}

// allocate obtains and zero-fills the backing store.
func allocate(o *ringOptions, size int) ([]byte, error) {
	if o.maxMemory > 0 && size > o.maxMemory {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %d bytes exceeds limit of %d", errors.ErrAllocationFailed, size, o.maxMemory),
			component, "Register", "allocate store")
	}

	store, err := o.allocator(size)
	if err != nil {
		return nil, errors.WrapFatal(joinSentinels(errors.ErrAllocationFailed, err),
			component, "Register", "allocate store")
	}
	if len(store) < size {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: allocator returned %d of %d bytes", errors.ErrAllocationFailed, len(store), size),
			component, "Register", "allocate store")
	}

	store = store[:size:size]
	clear(store)
	return store, nil
}

func (o *ringOptions) recordFailure(reason string) {
	if o.metricsReg != nil {
		o.metricsReg.CoreMetrics().RecordRegisterFailure(reason)
	}
}

// UnRegister releases the lanes and backing store and zeroes the ring.
// It is safe to call on a ring that was never registered or is already
// unregistered; only a nil handle is an error.
func (b *PriorityRingBuffer) UnRegister() error {
	if b == nil {
		return errUnRegisterNilHandle
	}

	if b.metrics != nil {
		b.metrics.unregister()
	}
	if b.registry != nil && b.Active() {
		b.registry.CoreMetrics().RecordRegistered(-1)
	}
	if b.logger != nil {
		b.logger.Debug("Ring buffer unregistered", "ring", b.name)
	}

	*b = PriorityRingBuffer{}
	return nil
}

// Push copies data into the next free slot of lane. In single-lane mode lane
// is ignored. Bytes of the slot beyond len(data) keep their previous content.
//
// Checks run in order and the first failure wins: nil handle, not
// registered, len(data) > SlotSize, lane out of range (priority mode only),
// lane full. A full lane returns ErrLaneFull and never overwrites unread data.
func (b *PriorityRingBuffer) Push(lane uint8, data []byte) error {
	if b == nil {
		return errPushNilHandle
	}
	if !b.Active() {
		return errPushNotRegistered
	}
	if len(data) > int(b.slotSize) {
		b.stats.Invalid()
		return errPushLength
	}
	if !b.priorityEnabled {
		lane = 0
	} else if lane >= b.laneCount {
		b.stats.Invalid()
		return errPushLane
	}

	l := &b.lanes[lane]
	w := l.write.Load()
	next := advance(w, b.slotCount)
	r := l.read.Load()
	if next == r {
		b.stats.Full(int(lane))
		if b.metrics != nil {
			b.metrics.recordFull(int(lane))
		}
		return errPushFull
	}

	off := b.offset(lane, w)
	copy(b.store[off:off+len(data)], data)
	l.write.Store(next)

	n := occupancy(next, r, b.slotCount)
	b.stats.Push(int(lane), n)
	if b.metrics != nil {
		b.metrics.recordPush(int(lane), n)
	}

	return nil
}

// Pop copies the next item into out. See PopLane.
func (b *PriorityRingBuffer) Pop(out []byte) error {
	_, err := b.PopLane(out)
	return err
}

// PopLane copies exactly SlotSize bytes of the next item into out and
// reports which lane it came from. Lanes are scanned from 0 (highest
// priority) upward and at most one item is removed per call.
//
// Checks run in order: nil handle, nil out, not registered,
// len(out) < SlotSize. When every lane is empty it returns ErrNoData and
// leaves out untouched.
func (b *PriorityRingBuffer) PopLane(out []byte) (uint8, error) {
	if b == nil {
		return 0, errPopNilHandle
	}
	if out == nil {
		if b.stats != nil {
			b.stats.Invalid()
		}
		return 0, errPopNilOutput
	}
	if !b.Active() {
		return 0, errPopNotRegistered
	}
	if len(out) < int(b.slotSize) {
		b.stats.Invalid()
		return 0, errPopShortOutput
	}

	for i := range b.lanes {
		l := &b.lanes[i]
		r := l.read.Load()
		w := l.write.Load()
		if r == w {
			continue
		}

		off := b.offset(uint8(i), r)
		copy(out[:b.slotSize], b.store[off:off+int(b.slotSize)])
		next := advance(r, b.slotCount)
		l.read.Store(next)

		b.stats.Pop(i)
		if b.metrics != nil {
			b.metrics.recordPop(i, occupancy(w, next, b.slotCount))
		}
		return uint8(i), nil
	}

	b.stats.EmptyPop()
	if b.metrics != nil {
		b.metrics.recordEmptyPop()
	}
	return 0, errPopEmpty
}

// offset returns the byte offset of store[lane][slot].
func (b *PriorityRingBuffer) offset(lane uint8, slot uint32) int {
	return (int(lane)*int(b.slotCount) + int(slot)) * int(b.slotSize)
}

// Active reports whether the ring is registered.
func (b *PriorityRingBuffer) Active() bool {
	return b != nil && b.lanes != nil && b.store != nil
}

// PriorityEnabled reports whether the ring runs in multi-lane priority mode.
func (b *PriorityRingBuffer) PriorityEnabled() bool {
	return b.priorityEnabled
}

// Name returns the ring name used for logs and metrics.
func (b *PriorityRingBuffer) Name() string {
	return b.name
}

// Geometry returns the geometry the ring was registered with.
func (b *PriorityRingBuffer) Geometry() Geometry {
	return Geometry{
		PriorityEnabled: b.priorityEnabled,
		PriorityLevel:   b.laneCount,
		SlotCount:       b.slotCount,
		SlotSize:        b.slotSize,
	}
}

// Lanes returns the number of lanes, 0 when not registered.
func (b *PriorityRingBuffer) Lanes() int {
	return int(b.laneCount)
}

// SlotCount returns the number of slots per lane.
func (b *PriorityRingBuffer) SlotCount() int {
	return int(b.slotCount)
}

// SlotSize returns the slot size in bytes, the exact size every Pop copies.
func (b *PriorityRingBuffer) SlotSize() int {
	return int(b.slotSize)
}

// Capacity returns the usable items per lane, SlotCount-1.
func (b *PriorityRingBuffer) Capacity() int {
	if b.slotCount == 0 {
		return 0
	}
	return int(b.slotCount) - 1
}

// Len returns the number of unread items in lane. The value is a snapshot
// and may be stale if the lane's producer or the consumer is running.
func (b *PriorityRingBuffer) Len(lane uint8) int {
	if !b.Active() || int(lane) >= len(b.lanes) {
		return 0
	}
	l := &b.lanes[lane]
	return occupancy(l.write.Load(), l.read.Load(), b.slotCount)
}

// IsEmpty reports whether lane has no unread items.
func (b *PriorityRingBuffer) IsEmpty(lane uint8) bool {
	return b.Len(lane) == 0
}

// IsFull reports whether the next push to lane would fail.
func (b *PriorityRingBuffer) IsFull(lane uint8) bool {
	if !b.Active() || int(lane) >= len(b.lanes) {
		return false
	}
	return b.Len(lane) == b.Capacity()
}

// Stats returns the ring statistics, nil when not registered.
func (b *PriorityRingBuffer) Stats() *Statistics {
	return b.stats
}
