package ringbuffer

import (
	stderrors "errors"
	"fmt"

	"github.com/c360/prioring/errors"
)

const component = "PriorityRingBuffer"

// Geometry is the fixed layout a ring is registered with. Sizes are bytes
// and slot counts, each limited to 255 like the registers they model.
type Geometry struct {
	// PriorityEnabled selects N-lane priority mode. When false the ring has
	// exactly one lane and PriorityLevel is ignored.
	PriorityEnabled bool `json:"priority_enabled" yaml:"priority_enabled"`

	// PriorityLevel is the number of lanes in priority mode. Lane 0 is the
	// highest priority, lane PriorityLevel-1 the lowest.
	PriorityLevel uint8 `json:"priority_level" yaml:"priority_level"`

	// SlotCount is the number of slots per lane. One slot is always kept
	// free, so each lane holds SlotCount-1 items. A SlotCount of 1 would give
	// lanes that are permanently full and is rejected by Validate.
	SlotCount uint8 `json:"slot_count" yaml:"slot_count"`

	// SlotSize is the size of one slot in bytes.
	SlotSize uint8 `json:"slot_size" yaml:"slot_size"`
}

// Lanes returns the number of lanes the geometry describes.
func (g Geometry) Lanes() int {
	if !g.PriorityEnabled {
		return 1
	}
	return int(g.PriorityLevel)
}

// StoreSize returns the backing store size in bytes.
func (g Geometry) StoreSize() int {
	return g.Lanes() * int(g.SlotCount) * int(g.SlotSize)
}

// Validate checks the geometry without allocating anything. SlotCount must
// be at least 2 so every lane can hold one item.
func (g Geometry) Validate() error {
	if g.PriorityEnabled && g.PriorityLevel == 0 {
		return errRegisterPriorityLevel
	}
	if g.SlotCount < 2 {
		return errRegisterSlotCount
	}
	if g.SlotSize == 0 {
		return errRegisterSlotSize
	}
	return nil
}

// New allocates and registers a ring in one step. It returns either an
// Active ring or an error, never a partially built one.
func New(g Geometry, opts ...Option) (*PriorityRingBuffer, error) {
	b := &PriorityRingBuffer{}
	if err := b.Register(g.PriorityEnabled, g.PriorityLevel, g.SlotCount, g.SlotSize, opts...); err != nil {
		return nil, err
	}
	return b, nil
}

// Status is the result kind of a ring operation.
type Status int

const (
	// StatusOK means the operation succeeded.
	StatusOK Status = iota
	// StatusInvalidParameter means the caller misused the ring.
	StatusInvalidParameter
	// StatusAllocationFailed means Register could not allocate the backing store.
	StatusAllocationFailed
	// StatusLaneFull means Push found no free slot.
	StatusLaneFull
	// StatusNoData means Pop found every lane empty.
	StatusNoData
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidParameter:
		return "invalid_parameter"
	case StatusAllocationFailed:
		return "allocation_failed"
	case StatusLaneFull:
		return "lane_full"
	case StatusNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// StatusOf maps an error returned by the ring to its Status. Errors that did
// not come from the ring map to StatusInvalidParameter.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case stderrors.Is(err, errors.ErrLaneFull):
		return StatusLaneFull
	case stderrors.Is(err, errors.ErrNoData):
		return StatusNoData
	case stderrors.Is(err, errors.ErrAllocationFailed):
		return StatusAllocationFailed
	default:
		return StatusInvalidParameter
	}
}

func invalid(op, action string) error {
	return errors.WrapInvalid(errors.ErrInvalidParameter, component, op, action)
}

func notRegistered(op string) error {
	return errors.WrapInvalid(
		joinSentinels(errors.ErrInvalidParameter, errors.ErrNotRegistered),
		component, op, "check registration")
}

func joinSentinels(kind, detail error) error {
	return fmt.Errorf("%w: %w", kind, detail)
}

// Errors on the Push and Pop paths are built once so a full or empty ring
// does not allocate.
var (
	errRegisterNilHandle     = invalid("Register", "check handle")
	errRegisterActive        = errors.WrapInvalid(
		joinSentinels(errors.ErrInvalidParameter, errors.ErrAlreadyRegistered),
		component, "Register", "check registration")
	errRegisterPriorityLevel = invalid("Register", "check priority level")
	errRegisterSlotCount     = invalid("Register", "check slot count")
	errRegisterSlotSize      = invalid("Register", "check slot size")

	errUnRegisterNilHandle = invalid("UnRegister", "check handle")

	errPushNilHandle     = invalid("Push", "check handle")
	errPushNotRegistered = notRegistered("Push")
	errPushLength        = invalid("Push", "check length")
	errPushLane          = invalid("Push", "check lane")
	errPushFull          = errors.WrapTransient(errors.ErrLaneFull, component, "Push", "reserve slot")

	errPopNilHandle     = invalid("Pop", "check handle")
	errPopNilOutput     = invalid("Pop", "check output")
	errPopNotRegistered = notRegistered("Pop")
	errPopShortOutput   = invalid("Pop", "check output length")
	errPopEmpty         = errors.WrapTransient(errors.ErrNoData, component, "Pop", "dequeue")
)
