package ringbuffer

import (
	"encoding/binary"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One producer per lane and a single consumer run concurrently. Every item
// must arrive exactly once and in per-lane FIFO order.
func TestConcurrent_ProducerPerLaneSingleConsumer(t *testing.T) {
	const (
		lanes   = 4
		perLane = 5000
	)

	ring := newPriority(t, lanes, 8, 8)

	var wg sync.WaitGroup
	for lane := 0; lane < lanes; lane++ {
		wg.Add(1)
		go func(lane uint8) {
			defer wg.Done()
			buf := make([]byte, 8)
			for seq := uint32(0); seq < perLane; seq++ {
				binary.LittleEndian.PutUint32(buf[0:4], seq)
				binary.LittleEndian.PutUint32(buf[4:8], uint32(lane))
				for ring.Push(lane, buf) != nil {
					runtime.Gosched()
				}
			}
		}(uint8(lane))
	}

	next := make([]uint32, lanes)
	out := make([]byte, 8)
	received := 0
	for received < lanes*perLane {
		lane, err := ring.PopLane(out)
		if err != nil {
			runtime.Gosched()
			continue
		}
		seq := binary.LittleEndian.Uint32(out[0:4])
		origin := binary.LittleEndian.Uint32(out[4:8])

		require.Equal(t, uint32(lane), origin, "item delivered from wrong lane")
		require.Equal(t, next[lane], seq, "lane %d out of order", lane)
		next[lane]++
		received++
	}

	wg.Wait()

	for lane := uint8(0); lane < lanes; lane++ {
		assert.True(t, ring.IsEmpty(lane))
		assert.Equal(t, uint32(perLane), next[lane])
	}
	assert.Equal(t, int64(lanes*perLane), ring.Stats().Pushes())
	assert.Equal(t, int64(lanes*perLane), ring.Stats().Pops())
}

func TestConcurrent_SingleLaneNoLoss(t *testing.T) {
	const total = 20000

	ring := newSingle(t, 3, 4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4)
		for i := uint32(0); i < total; i++ {
			binary.BigEndian.PutUint32(buf, i)
			for ring.Push(0, buf) != nil {
				runtime.Gosched()
			}
		}
	}()

	out := make([]byte, 4)
	for want := uint32(0); want < total; {
		if ring.Pop(out) != nil {
			runtime.Gosched()
			continue
		}
		require.Equal(t, want, binary.BigEndian.Uint32(out))
		want++
	}
	<-done
}
