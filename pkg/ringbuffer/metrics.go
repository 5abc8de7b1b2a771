package ringbuffer

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/prioring/metric"
)

// ringMetrics holds the Prometheus collectors of one ring. Per-lane children
// are resolved once at registration so Push and Pop skip label lookups.
type ringMetrics struct {
	registry *metric.MetricsRegistry
	owner    string

	pushesVec      *prometheus.CounterVec
	popsVec        *prometheus.CounterVec
	fullVec        *prometheus.CounterVec
	occupancyVec   *prometheus.GaugeVec
	utilizationVec *prometheus.GaugeVec
	emptyPops      prometheus.Counter

	pushes      []prometheus.Counter
	pops        []prometheus.Counter
	full        []prometheus.Counter
	occupancy   []prometheus.Gauge
	utilization []prometheus.Gauge

	capacity float64
}

var ringMetricNames = []string{
	"ring_pushes", "ring_pops", "ring_full", "ring_empty_pops", "ring_occupancy", "ring_utilization",
}

// newRingMetrics creates and registers the collectors for a ring. On error
// nothing stays registered.
func newRingMetrics(registry *metric.MetricsRegistry, name string, lanes, capacity int) (*ringMetrics, error) {
	labels := prometheus.Labels{"ring": name}

	m := &ringMetrics{
		registry: registry,
		owner:    name,
		capacity: float64(capacity),
		pushesVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "pushes_total",
			ConstLabels: labels,
			Help:        "Total number of items pushed per lane",
		}, []string{"lane"}),
		popsVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "pops_total",
			ConstLabels: labels,
			Help:        "Total number of items popped per lane",
		}, []string{"lane"}),
		fullVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "full_total",
			ConstLabels: labels,
			Help:        "Total number of pushes rejected because the lane was full",
		}, []string{"lane"}),
		emptyPops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "empty_pops_total",
			ConstLabels: labels,
			Help:        "Total number of pops that found every lane empty",
		}),
		occupancyVec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "occupancy",
			ConstLabels: labels,
			Help:        "Current number of unread items per lane",
		}, []string{"lane"}),
		utilizationVec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Lane utilization as a fraction of usable capacity (0.0 to 1.0)",
		}, []string{"lane"}),
	}

	collectors := []prometheus.Collector{
		m.pushesVec, m.popsVec, m.fullVec, m.emptyPops, m.occupancyVec, m.utilizationVec,
	}
	for i, c := range collectors {
		if err := m.registerOne(ringMetricNames[i], c); err != nil {
			for _, registered := range ringMetricNames[:i] {
				registry.Unregister(name, registered)
			}
			return nil, err
		}
	}

	m.pushes = make([]prometheus.Counter, lanes)
	m.pops = make([]prometheus.Counter, lanes)
	m.full = make([]prometheus.Counter, lanes)
	m.occupancy = make([]prometheus.Gauge, lanes)
	m.utilization = make([]prometheus.Gauge, lanes)
	for i := 0; i < lanes; i++ {
		l := strconv.Itoa(i)
		m.pushes[i] = m.pushesVec.WithLabelValues(l)
		m.pops[i] = m.popsVec.WithLabelValues(l)
		m.full[i] = m.fullVec.WithLabelValues(l)
		m.occupancy[i] = m.occupancyVec.WithLabelValues(l)
		m.utilization[i] = m.utilizationVec.WithLabelValues(l)
		m.occupancy[i].Set(0)
		m.utilization[i].Set(0)
	}

	return m, nil
}

func (m *ringMetrics) registerOne(name string, c prometheus.Collector) error {
	switch v := c.(type) {
	case *prometheus.CounterVec:
		return m.registry.RegisterCounterVec(m.owner, name, v)
	case *prometheus.GaugeVec:
		return m.registry.RegisterGaugeVec(m.owner, name, v)
	case prometheus.Counter:
		return m.registry.RegisterCounter(m.owner, name, v)
	default:
		panic("ringbuffer: unsupported collector type")
	}
}

func (m *ringMetrics) unregister() {
	for _, name := range ringMetricNames {
		m.registry.Unregister(m.owner, name)
	}
}

func (m *ringMetrics) recordPush(lane, occupancy int) {
	m.pushes[lane].Inc()
	m.setOccupancy(lane, occupancy)
}

func (m *ringMetrics) recordPop(lane, occupancy int) {
	m.pops[lane].Inc()
	m.setOccupancy(lane, occupancy)
}

func (m *ringMetrics) recordFull(lane int) {
	m.full[lane].Inc()
}

func (m *ringMetrics) recordEmptyPop() {
	m.emptyPops.Inc()
}

func (m *ringMetrics) setOccupancy(lane, occupancy int) {
	m.occupancy[lane].Set(float64(occupancy))
	m.utilization[lane].Set(float64(occupancy) / m.capacity)
}
