package ringbuffer

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// lane holds the cursors of one FIFO. The producer is the only writer of
// write and the consumer the only writer of read; each side only loads the
// other's cursor. Padding keeps the two cursors, and neighbouring lanes, on
// separate cache lines.
//
// Cursors are always < slotCount. They are kept in 32-bit atomics because
// sync/atomic has no 16-bit type.
type lane struct {
	write atomic.Uint32
	_     cpu.CacheLinePad
	read  atomic.Uint32
	_     cpu.CacheLinePad
}

// advance returns idx+1 wrapped modulo slotCount.
func advance(idx uint32, slotCount uint8) uint32 {
	next := idx + 1
	if next >= uint32(slotCount) {
		return 0
	}
	return next
}

// occupancy returns the number of unread slots for the given cursor pair.
func occupancy(write, read uint32, slotCount uint8) int {
	if write >= read {
		return int(write - read)
	}
	return int(write) + int(slotCount) - int(read)
}
