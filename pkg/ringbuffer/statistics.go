package ringbuffer

import (
	"sync/atomic"
	"time"
)

// Statistics tracks ring activity. Counters are atomic so the producer of
// each lane and the consumer can update them concurrently.
type Statistics struct {
	pushes []atomic.Int64
	pops   []atomic.Int64
	full   []atomic.Int64
	peak   []atomic.Int64

	emptyPops atomic.Int64
	invalid   atomic.Int64

	startTime time.Time
}

// NewStatistics creates a statistics tracker for the given number of lanes.
func NewStatistics(lanes int) *Statistics {
	return &Statistics{
		pushes:    make([]atomic.Int64, lanes),
		pops:      make([]atomic.Int64, lanes),
		full:      make([]atomic.Int64, lanes),
		peak:      make([]atomic.Int64, lanes),
		startTime: time.Now(),
	}
}

// Push records a successful push and the lane occupancy after it.
func (s *Statistics) Push(lane int, occupancy int) {
	s.pushes[lane].Add(1)

	// Only the lane's producer raises the peak, so load-then-store is enough.
	if int64(occupancy) > s.peak[lane].Load() {
		s.peak[lane].Store(int64(occupancy))
	}
}

// Pop records a successful pop from lane.
func (s *Statistics) Pop(lane int) {
	s.pops[lane].Add(1)
}

// Full records a push rejected because lane had no free slot.
func (s *Statistics) Full(lane int) {
	s.full[lane].Add(1)
}

// EmptyPop records a pop that found no data.
func (s *Statistics) EmptyPop() {
	s.emptyPops.Add(1)
}

// Invalid records a call rejected for invalid parameters.
func (s *Statistics) Invalid() {
	s.invalid.Add(1)
}

// Lanes returns the number of lanes tracked.
func (s *Statistics) Lanes() int {
	return len(s.pushes)
}

// Pushes returns the total number of successful pushes.
func (s *Statistics) Pushes() int64 {
	return sum(s.pushes)
}

// Pops returns the total number of successful pops.
func (s *Statistics) Pops() int64 {
	return sum(s.pops)
}

// FullRejections returns the total number of pushes rejected on a full lane.
func (s *Statistics) FullRejections() int64 {
	return sum(s.full)
}

// EmptyPops returns the number of pops that found no data.
func (s *Statistics) EmptyPops() int64 {
	return s.emptyPops.Load()
}

// InvalidCalls returns the number of calls rejected for invalid parameters.
func (s *Statistics) InvalidCalls() int64 {
	return s.invalid.Load()
}

// LanePushes returns the successful pushes on lane.
func (s *Statistics) LanePushes(lane int) int64 {
	return s.pushes[lane].Load()
}

// LanePops returns the successful pops from lane.
func (s *Statistics) LanePops(lane int) int64 {
	return s.pops[lane].Load()
}

// LaneFull returns the pushes rejected on lane.
func (s *Statistics) LaneFull(lane int) int64 {
	return s.full[lane].Load()
}

// LanePeak returns the highest occupancy lane has reached.
func (s *Statistics) LanePeak(lane int) int64 {
	return s.peak[lane].Load()
}

// Throughput returns the average number of pushes per second.
func (s *Statistics) Throughput() float64 {
	elapsed := time.Since(s.startTime)
	if elapsed <= 0 {
		return 0.0
	}
	return float64(s.Pushes()) / elapsed.Seconds()
}

// FullRate returns the fraction of push attempts rejected on a full lane (0.0 to 1.0).
func (s *Statistics) FullRate() float64 {
	full := s.FullRejections()
	attempts := s.Pushes() + full
	if attempts == 0 {
		return 0.0
	}
	return float64(full) / float64(attempts)
}

// Uptime returns how long the ring has been registered.
func (s *Statistics) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// LaneSummary is a snapshot of one lane.
type LaneSummary struct {
	Lane   int   `json:"lane"`
	Pushes int64 `json:"pushes"`
	Pops   int64 `json:"pops"`
	Full   int64 `json:"full"`
	Peak   int64 `json:"peak"`
}

// StatsSummary is a snapshot of all statistics.
type StatsSummary struct {
	Pushes         int64         `json:"pushes"`
	Pops           int64         `json:"pops"`
	FullRejections int64         `json:"full_rejections"`
	EmptyPops      int64         `json:"empty_pops"`
	InvalidCalls   int64         `json:"invalid_calls"`
	Throughput     float64       `json:"throughput"`
	FullRate       float64       `json:"full_rate"`
	Uptime         time.Duration `json:"uptime"`
	Lanes          []LaneSummary `json:"lanes"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	lanes := make([]LaneSummary, s.Lanes())
	for i := range lanes {
		lanes[i] = LaneSummary{
			Lane:   i,
			Pushes: s.LanePushes(i),
			Pops:   s.LanePops(i),
			Full:   s.LaneFull(i),
			Peak:   s.LanePeak(i),
		}
	}

	return StatsSummary{
		Pushes:         s.Pushes(),
		Pops:           s.Pops(),
		FullRejections: s.FullRejections(),
		EmptyPops:      s.EmptyPops(),
		InvalidCalls:   s.InvalidCalls(),
		Throughput:     s.Throughput(),
		FullRate:       s.FullRate(),
		Uptime:         s.Uptime(),
		Lanes:          lanes,
	}
}

func sum(counters []atomic.Int64) int64 {
	var total int64
	for i := range counters {
		total += counters[i].Load()
	}
	return total
}
