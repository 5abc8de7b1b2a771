// Package pump connects priority rings to the code around them.
//
// Producers call PushWithRetry to ride out short bursts where a lane is full.
// The consumer side is a Drainer, the one goroutine allowed to pop from a
// ring, which hands each item to a Submitter such as a worker.Pool:
//
//	pool := worker.NewPool[pump.Item](4, 256, pump.Instrument(registry, handle))
//	_ = pool.Start(ctx)
//
//	drainer, err := pump.NewDrainer(ring, pool, pump.WithInterval(time.Millisecond))
//	if err != nil {
//	    return err
//	}
//	go drainer.Run(ctx)
//
//	err = pump.PushWithRetry(ctx, ring, 0, frame, retry.Backpressure())
//
// Items copy the full slot, so Data is always SlotSize bytes long.
package pump
