package health

import (
	"fmt"
	"sync"

	"github.com/c360/prioring/metric"
	"github.com/c360/prioring/pkg/ringbuffer"
)

// DefaultDegradedUtilization is the lane fill ratio at which a ring is
// reported degraded.
const DefaultDegradedUtilization = 0.9

// Ring is the read-only view of a ring the checker needs.
// *ringbuffer.PriorityRingBuffer satisfies it. The name is passed
// separately since an unregistered ring no longer carries one.
type Ring interface {
	Active() bool
	Lanes() int
	Capacity() int
	Len(lane uint8) int
	Stats() *ringbuffer.Statistics
}

// FromRing derives a status from a ring snapshot.
//
// A ring that is not registered is unhealthy. A registered ring is degraded
// when any lane is at or above threshold of its capacity, or when pushes were
// rejected on a full lane since lastFull was taken. Otherwise it is healthy.
func FromRing(name string, ring Ring, lastFull int64, threshold float64) Status {
	if !ring.Active() {
		return NewUnhealthy(name, "ring not registered")
	}

	m := &Metrics{
		Lanes:     ring.Lanes(),
		Capacity:  ring.Capacity(),
		Occupancy: make([]int, ring.Lanes()),
	}
	fullest := 0
	for lane := 0; lane < m.Lanes; lane++ {
		n := ring.Len(uint8(lane))
		m.Occupancy[lane] = n
		if n > m.Occupancy[fullest] {
			fullest = lane
		}
	}
	if m.Capacity > 0 && m.Lanes > 0 {
		m.Utilization = float64(m.Occupancy[fullest]) / float64(m.Capacity)
	}

	if stats := ring.Stats(); stats != nil {
		m.Uptime = stats.Uptime()
		m.Pushes = stats.Pushes()
		m.Pops = stats.Pops()
		m.FullRejections = stats.FullRejections()
		if m.FullRejections > lastFull {
			m.NewRejections = m.FullRejections - lastFull
		}
	}

	var status Status
	switch {
	case m.NewRejections > 0:
		status = NewDegraded(name, fmt.Sprintf("%d pushes rejected on a full lane", m.NewRejections))
	case m.Lanes > 0 && m.Utilization >= threshold:
		status = NewDegraded(name, fmt.Sprintf("lane %d at %.0f%% of capacity", fullest, m.Utilization*100))
	default:
		status = NewHealthy(name, "ring accepting pushes")
	}
	return status.WithMetrics(m)
}

// RingChecker evaluates rings, remembers each ring's rejection count
// between checks and publishes results to a Monitor and the core metrics.
type RingChecker struct {
	mu        sync.Mutex
	lastFull  map[string]int64
	threshold float64
	monitor   *Monitor
	core      *metric.Metrics
}

// NewRingChecker creates a checker. core may be nil to skip the gauge.
func NewRingChecker(monitor *Monitor, core *metric.Metrics) *RingChecker {
	if monitor == nil {
		monitor = NewMonitor()
	}
	return &RingChecker{
		lastFull:  make(map[string]int64),
		threshold: DefaultDegradedUtilization,
		monitor:   monitor,
		core:      core,
	}
}

// SetThreshold changes the degraded utilization threshold (0.0 to 1.0]
func (c *RingChecker) SetThreshold(threshold float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if threshold > 0 && threshold <= 1 {
		c.threshold = threshold
	}
}

// Monitor returns the monitor results are published to
func (c *RingChecker) Monitor() *Monitor {
	return c.monitor
}

// Check evaluates ring under name, stores the result and returns it
func (c *RingChecker) Check(name string, ring Ring) Status {
	c.mu.Lock()
	status := FromRing(name, ring, c.lastFull[name], c.threshold)
	if status.Metrics != nil {
		c.lastFull[name] = status.Metrics.FullRejections
	} else {
		delete(c.lastFull, name)
	}
	c.mu.Unlock()

	c.monitor.Update(name, status)
	if c.core != nil {
		c.core.RecordHealthStatus(name, status.Level())
	}
	return status
}

// CheckAll evaluates every ring and returns the aggregate status
func (c *RingChecker) CheckAll(system string, rings map[string]Ring) Status {
	for name, ring := range rings {
		c.Check(name, ring)
	}
	return c.monitor.AggregateHealth(system)
}
