// Package health reports whether rings are keeping up with their producers.
//
// # Health States
//
// Every ring is in one of three states:
//   - Healthy: registered, lanes below the utilization threshold, no new full rejections
//   - Degraded: a lane is at or above the threshold (90% by default), or pushes
//     were rejected on a full lane since the previous check
//   - Unhealthy: the ring is not registered
//
// The states map to the prioring_health_status gauge as 2, 1 and 0.
//
// # Checking Rings
//
// RingChecker remembers the rejection count of each ring between checks, so
// a burst of full lanes is reported once and clears when the consumer catches
// up:
//
//	monitor := health.NewMonitor()
//	checker := health.NewRingChecker(monitor, registry.CoreMetrics())
//
//	ticker := time.NewTicker(5 * time.Second)
//	for range ticker.C {
//	    checker.Check("uplink", uplink)
//	}
//
// FromRing computes a single status without any state, which is useful in
// tests and one-off reports.
//
// # Aggregation
//
// Monitor stores the latest status per ring. AggregateHealth rolls them up:
// any unhealthy ring makes the system unhealthy, otherwise any degraded ring
// makes it degraded. Handler serves the aggregate as JSON and answers 503
// while it is unhealthy.
//
//	server.Handle("/rings", health.Handler("prioring", monitor))
//
// # Errors
//
// FromError turns a pipeline error into an unhealthy status. URLs, paths,
// IP addresses, ports and credentials are replaced with placeholders before
// the message is published.
package health
