package ringbuffer

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/prioring/errors"
	"github.com/c360/prioring/metric"
)

// laneValue returns the value of the sample in family whose lane label is lane.
func laneValue(t *testing.T, registry *metric.MetricsRegistry, family, ring, lane string) float64 {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue(m, "ring") != ring || labelValue(m, "lane") != lane {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{ring=%q,lane=%q} not found", family, ring, lane)
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func familyNames(t *testing.T, registry *metric.MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestMetrics_PushPopExported(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	ring, err := New(Geometry{PriorityEnabled: true, PriorityLevel: 2, SlotCount: 5, SlotSize: 4},
		WithMetrics(registry, "uplink"))
	require.NoError(t, err)
	defer ring.UnRegister()

	assert.Equal(t, "uplink", ring.Name())

	require.NoError(t, ring.Push(1, []byte("a")))
	require.NoError(t, ring.Push(1, []byte("b")))
	require.NoError(t, ring.Push(0, []byte("c")))

	assert.Equal(t, 1.0, laneValue(t, registry, "prioring_ring_pushes_total", "uplink", "0"))
	assert.Equal(t, 2.0, laneValue(t, registry, "prioring_ring_pushes_total", "uplink", "1"))
	assert.Equal(t, 2.0, laneValue(t, registry, "prioring_ring_occupancy", "uplink", "1"))
	assert.Equal(t, 0.5, laneValue(t, registry, "prioring_ring_utilization", "uplink", "1"))

	out := make([]byte, 4)
	require.NoError(t, ring.Pop(out))
	assert.Equal(t, 1.0, laneValue(t, registry, "prioring_ring_pops_total", "uplink", "0"))
	assert.Equal(t, 0.0, laneValue(t, registry, "prioring_ring_occupancy", "uplink", "0"))
}

func TestMetrics_FullAndEmpty(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	ring, err := New(Geometry{SlotCount: 2, SlotSize: 1}, WithMetrics(registry, "tiny"))
	require.NoError(t, err)
	defer ring.UnRegister()

	require.NoError(t, ring.Push(0, nil))
	assert.ErrorIs(t, ring.Push(0, nil), errors.ErrLaneFull)
	assert.ErrorIs(t, ring.Push(0, nil), errors.ErrLaneFull)
	assert.Equal(t, 2.0, laneValue(t, registry, "prioring_ring_full_total", "tiny", "0"))
	assert.Equal(t, 1.0, laneValue(t, registry, "prioring_ring_utilization", "tiny", "0"))

	out := make([]byte, 1)
	require.NoError(t, ring.Pop(out))
	assert.ErrorIs(t, ring.Pop(out), errors.ErrNoData)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	var empty float64
	for _, mf := range families {
		if mf.GetName() == "prioring_ring_empty_pops_total" {
			empty = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, empty)
}

func TestMetrics_RegisteredGauge(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	var a, b PriorityRingBuffer

	require.NoError(t, a.Register(false, 0, 4, 4, WithMetrics(registry, "a")))
	require.NoError(t, b.Register(false, 0, 4, 4, WithMetrics(registry, "b")))

	gauge := func() float64 {
		families, err := registry.PrometheusRegistry().Gather()
		require.NoError(t, err)
		for _, mf := range families {
			if mf.GetName() == "prioring_rings_registered" {
				return mf.GetMetric()[0].GetGauge().GetValue()
			}
		}
		return -1
	}
	assert.Equal(t, 2.0, gauge())

	require.NoError(t, a.UnRegister())
	require.NoError(t, a.UnRegister())
	assert.Equal(t, 1.0, gauge())

	require.NoError(t, b.UnRegister())
	assert.Equal(t, 0.0, gauge())
}

func TestMetrics_UnRegisterRemovesCollectors(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	var ring PriorityRingBuffer
	require.NoError(t, ring.Register(false, 0, 4, 4, WithMetrics(registry, "gone")))
	require.NoError(t, ring.Push(0, nil))

	assert.True(t, familyNames(t, registry)["prioring_ring_pushes_total"])
	for _, name := range ringMetricNames {
		assert.True(t, registry.Registered("gone", name), name)
	}

	require.NoError(t, ring.UnRegister())
	assert.False(t, familyNames(t, registry)["prioring_ring_pushes_total"])
	for _, name := range ringMetricNames {
		assert.False(t, registry.Registered("gone", name), name)
	}
}

func TestMetrics_DuplicateNameRejected(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	var first, second PriorityRingBuffer

	require.NoError(t, first.Register(false, 0, 4, 4, WithMetrics(registry, "dup")))

	err := second.Register(false, 0, 4, 4, WithMetrics(registry, "dup"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)
	assert.False(t, second.Active())

	// first ring keeps its collectors
	require.NoError(t, first.Push(0, nil))
	assert.Equal(t, 1.0, laneValue(t, registry, "prioring_ring_pushes_total", "dup", "0"))

	require.NoError(t, first.UnRegister())
	require.NoError(t, second.Register(false, 0, 4, 4, WithMetrics(registry, "dup")))
	assert.NoError(t, second.UnRegister())
}

func TestMetrics_RegisterFailureReasons(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	var ring PriorityRingBuffer

	_ = ring.Register(true, 0, 4, 4, WithMetrics(registry, "bad"))
	_ = ring.Register(false, 0, 4, 4, WithMetrics(registry, "bad"), WithMaxMemory(1))

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	reasons := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "prioring_rings_register_failures_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			reasons[labelValue(m, "reason")] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, reasons["invalid_geometry"])
	assert.Equal(t, 1.0, reasons["allocation"])
}

func TestStatistics(t *testing.T) {
	ring := newPriority(t, 2, 3, 2)
	out := make([]byte, 2)

	require.NoError(t, ring.Push(0, nil))
	require.NoError(t, ring.Push(0, nil))
	require.Error(t, ring.Push(0, nil))
	require.NoError(t, ring.Push(1, nil))
	require.Error(t, ring.Push(5, nil))
	require.Error(t, ring.Push(1, []byte{1, 2, 3}))
	require.Error(t, ring.Pop(out[:1]))

	for i := 0; i < 3; i++ {
		require.NoError(t, ring.Pop(out))
	}
	require.Error(t, ring.Pop(out))

	stats := ring.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Lanes())
	assert.Equal(t, int64(3), stats.Pushes())
	assert.Equal(t, int64(3), stats.Pops())
	assert.Equal(t, int64(1), stats.FullRejections())
	assert.Equal(t, int64(1), stats.EmptyPops())
	assert.Equal(t, int64(3), stats.InvalidCalls())
	assert.Equal(t, int64(2), stats.LanePushes(0))
	assert.Equal(t, int64(2), stats.LanePops(0))
	assert.Equal(t, int64(2), stats.LanePeak(0))
	assert.Equal(t, int64(1), stats.LanePeak(1))
	assert.InDelta(t, 0.25, stats.FullRate(), 1e-9)
	assert.Greater(t, stats.Uptime(), time.Duration(0))

	summary := stats.Summary()
	assert.Equal(t, int64(3), summary.Pushes)
	require.Len(t, summary.Lanes, 2)
	assert.Equal(t, LaneSummary{Lane: 0, Pushes: 2, Pops: 2, Full: 1, Peak: 2}, summary.Lanes[0])
	assert.Equal(t, LaneSummary{Lane: 1, Pushes: 1, Pops: 1, Full: 0, Peak: 1}, summary.Lanes[1])
}

func TestStatistics_EmptyRates(t *testing.T) {
	stats := NewStatistics(1)
	assert.Equal(t, 0.0, stats.FullRate())
	assert.GreaterOrEqual(t, stats.Throughput(), 0.0)
}

func TestLogger_LifecycleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var ring PriorityRingBuffer
	require.NoError(t, ring.Register(false, 0, 2, 1, WithLogger(logger), WithName("logged")))
	assert.Contains(t, buf.String(), "Ring buffer registered")
	assert.Contains(t, buf.String(), "ring=logged")

	buf.Reset()
	require.NoError(t, ring.Push(0, nil))
	_ = ring.Push(0, nil)
	_ = ring.Pop(make([]byte, 1))
	_ = ring.Pop(make([]byte, 1))
	assert.Empty(t, buf.String())

	require.NoError(t, ring.UnRegister())
	assert.Contains(t, buf.String(), "Ring buffer unregistered")
}
