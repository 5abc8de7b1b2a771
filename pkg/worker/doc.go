// Package worker provides a generic, thread-safe worker pool used to process
// items drained from priority rings.
//
// # Overview
//
// A Pool runs a fixed number of goroutines that take work items from a
// bounded channel and hand them to a processor function:
//
//	pool := worker.NewPool[pump.Item](
//	    4,    // workers
//	    256,  // queue size
//	    func(ctx context.Context, item pump.Item) error {
//	        return forward(ctx, item.Data)
//	    },
//	    worker.WithName[pump.Item]("uplink"),
//	)
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// # Backpressure
//
// Submit never blocks. When the queue is at capacity it returns ErrQueueFull,
// which wraps errors.ErrQueueFull and is classified as transient. Callers
// decide whether to retry, drop, or leave the item where it came from.
//
// # Shutdown
//
// Stop closes the queue, lets workers finish the items already queued and
// waits up to the given timeout. Cancelling the context passed to Start makes
// workers exit without draining. Stop is idempotent; Submit after Stop
// returns ErrPoolStopped.
//
// A processor that panics is recovered, counted as failed and as panicked,
// and the worker keeps running.
//
// # Observability
//
// Statistics are always tracked with atomics and returned by Stats.
// WithMetricsRegistry additionally exports, labelled with pool=<name>:
//
//	prioring_worker_queue_depth
//	prioring_worker_utilization
//	prioring_worker_submitted_total
//	prioring_worker_processed_total
//	prioring_worker_failed_total
//	prioring_worker_dropped_total
//	prioring_worker_processing_duration_seconds{status}
//
// Pool names must be unique within a registry; a clash disables metrics for
// the later pool and logs a warning. Metrics are unregistered by Stop.
package worker
