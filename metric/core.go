package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by this module
const Namespace = "prioring"

// Metrics contains process-level metrics shared by every ring
type Metrics struct {
	RingsRegistered    prometheus.Gauge
	RegisterFailures   *prometheus.CounterVec
	ItemsProcessed     *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	HealthStatus       *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		RingsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "rings",
				Name:      "registered",
				Help:      "Number of ring buffers currently registered",
			},
		),

		RegisterFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "rings",
				Name:      "register_failures_total",
				Help:      "Total number of failed ring registrations",
			},
			[]string{"reason"},
		),

		ItemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "drain",
				Name:      "items_total",
				Help:      "Total number of drained items handed to processors",
			},
			[]string{"ring", "status"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "drain",
				Name:      "duration_seconds",
				Help:      "Time spent processing a drained item",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
			},
			[]string{"ring"},
		),

		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Ring health (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"ring"},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.RingsRegistered,
		c.RegisterFailures,
		c.ItemsProcessed,
		c.ProcessingDuration,
		c.HealthStatus,
	}
}

// RecordRegistered adjusts the registered ring gauge by delta
func (c *Metrics) RecordRegistered(delta int) {
	c.RingsRegistered.Add(float64(delta))
}

// RecordRegisterFailure increments the failure counter for reason
func (c *Metrics) RecordRegisterFailure(reason string) {
	c.RegisterFailures.WithLabelValues(reason).Inc()
}

// RecordItemProcessed counts one drained item and its processing time
func (c *Metrics) RecordItemProcessed(ring, status string, duration time.Duration) {
	c.ItemsProcessed.WithLabelValues(ring, status).Inc()
	c.ProcessingDuration.WithLabelValues(ring).Observe(duration.Seconds())
}

// RecordHealthStatus sets the health gauge for a ring
func (c *Metrics) RecordHealthStatus(ring string, level int) {
	c.HealthStatus.WithLabelValues(ring).Set(float64(level))
}
