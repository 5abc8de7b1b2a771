// Package retry provides exponential backoff retry logic for transient conditions.
//
// The ring buffer never retries on its own: a full lane is reported immediately
// and recovery is left to the caller. This package is the caller-side layer.
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay
//   - Backpressure(): 20 attempts, 100µs-10ms delay, for waiting on a draining lane
//
// # Usage
//
//	err := retry.Do(ctx, retry.Backpressure(), func() error {
//	    err := ring.Push(lane, payload)
//	    if errors.IsInvalid(err) {
//	        return retry.NonRetryable(err)
//	    }
//	    return err
//	})
//
// Errors wrapped with NonRetryable stop the loop immediately. Context
// cancellation interrupts both attempts and backoff sleeps.
package retry
