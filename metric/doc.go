// Package metric wraps a Prometheus registry for prioring components.
//
// MetricsRegistry owns a dedicated prometheus.Registry (never the global
// default), the core process-level Metrics, and a keyed table of component
// collectors so each ring can register on Register and unregister on
// UnRegister without touching anyone else's series.
//
//	registry := metric.NewMetricsRegistry()
//	ring, err := ringbuffer.New(geometry, ringbuffer.WithMetrics(registry, "uplink"))
//
//	srv := metric.NewServer(9090, "/metrics", registry)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
// Registering the same owner/metric pair twice fails with an Invalid class error.
package metric
