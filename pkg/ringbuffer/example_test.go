package ringbuffer_test

import (
	"errors"
	"fmt"

	prerrors "github.com/c360/prioring/errors"
	"github.com/c360/prioring/pkg/ringbuffer"
)

func ExamplePriorityRingBuffer() {
	var ring ringbuffer.PriorityRingBuffer
	if err := ring.Register(false, 0, 4, 8); err != nil {
		panic(err)
	}
	defer ring.UnRegister()

	for _, msg := range []string{"one", "two", "three", "four"} {
		if err := ring.Push(0, []byte(msg)); err != nil {
			fmt.Println(msg, ringbuffer.StatusOf(err))
		}
	}

	out := make([]byte, ring.SlotSize())
	for {
		err := ring.Pop(out)
		if errors.Is(err, prerrors.ErrNoData) {
			break
		}
		fmt.Printf("%q\n", out)
	}

	// Output:
	// four lane_full
	// "one\x00\x00\x00\x00\x00"
	// "two\x00\x00\x00\x00\x00"
	// "three\x00\x00\x00"
}

func ExamplePriorityRingBuffer_PopLane() {
	ring, err := ringbuffer.New(ringbuffer.Geometry{
		PriorityEnabled: true,
		PriorityLevel:   3,
		SlotCount:       4,
		SlotSize:        4,
	})
	if err != nil {
		panic(err)
	}
	defer ring.UnRegister()

	_ = ring.Push(2, []byte("bulk"))
	_ = ring.Push(0, []byte("ctrl"))
	_ = ring.Push(1, []byte("data"))

	out := make([]byte, 4)
	for {
		lane, err := ring.PopLane(out)
		if err != nil {
			break
		}
		fmt.Println(lane, string(out))
	}

	// Output:
	// 0 ctrl
	// 1 data
	// 2 bulk
}
