// Package ringbuffer provides a fixed-geometry circular buffer with optional
// multi-lane priority scheduling.
//
// # Overview
//
// A PriorityRingBuffer is registered once with a mode and a geometry and
// never resizes. It owns one contiguous backing store of
// lanes × slotCount × slotSize bytes plus a write cursor and a read cursor
// per lane. Every item occupies exactly one fixed-size slot.
//
//	ring, err := ringbuffer.New(ringbuffer.Geometry{
//		PriorityEnabled: true,
//		PriorityLevel:   3,  // lanes 0 (highest) .. 2 (lowest)
//		SlotCount:       16, // 15 usable slots per lane
//		SlotSize:        64,
//	})
//	if err != nil {
//		return err
//	}
//	defer ring.UnRegister()
//
//	_ = ring.Push(2, []byte("bulk"))
//	_ = ring.Push(0, []byte("alarm"))
//
//	out := make([]byte, ring.SlotSize())
//	lane, err := ring.PopLane(out) // lane 0, "alarm" followed by zero bytes
//
// The zero value can also be registered in place, mirroring a statically
// allocated handle:
//
//	var ring ringbuffer.PriorityRingBuffer
//	err := ring.Register(false, 0, 4, 8)
//
// # Slots and Capacity
//
// A lane is empty when its cursors are equal and full when advancing the
// write cursor would make it equal to the read cursor. One slot per lane is
// therefore never used: usable capacity is slotCount-1.
//
// Push copies len(data) bytes into a slot; Pop always copies slotSize bytes
// out. Bytes past the pushed length keep whatever the slot held before
// (zero on a freshly registered ring).
//
// # Results
//
// Every operation returns nil (Ok) or an error matching one sentinel from
// the errors package:
//
//   - ErrInvalidParameter: misuse, never retried
//   - ErrAllocationFailed: Register could not allocate; setup should stop
//   - ErrLaneFull: backpressure from Push; retry later or drop
//   - ErrNoData: Pop found nothing; poll later
//
// StatusOf maps an error to a Status value for callers that prefer a switch.
// Push and Pop errors are preallocated, so backpressure and polling do not
// allocate.
//
// # Concurrency
//
// Per lane, one producer and one consumer may run concurrently without
// locks. The producer only stores the write cursor and loads the read
// cursor; the consumer does the opposite. Cursors are sync/atomic values, so
// a published cursor makes the slot contents written before it visible to
// the other side. There must be a single consumer overall, because Pop scans
// every lane. Register and UnRegister must not overlap any other call.
//
// # Observability
//
// Statistics are always collected (see Stats). WithMetrics additionally
// exports per-lane counters and occupancy gauges to a metric.MetricsRegistry
// under the prioring_ring_ prefix, labelled with the ring name. Lifecycle
// events are logged at debug level through WithLogger; Push and Pop never log.
package ringbuffer
