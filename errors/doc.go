// Package errors provides standardized error handling patterns for prioring components.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (caller misuse, non-retryable) and Fatal (stop setup or processing).
//
// The ring buffer reports its four result kinds through sentinel errors:
//
//   - ErrInvalidParameter: nil handle, out of range lane, oversized payload, bad geometry (Invalid)
//   - ErrAllocationFailed: backing store could not be allocated during Register (Fatal)
//   - ErrLaneFull: Push found no free slot, an expected backpressure signal (Transient)
//   - ErrNoData: Pop found nothing, poll again later (Transient)
//
// A nil error is the Ok result.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// The sentinel stays reachable through the chain:
//
//	err := ring.Push(0, payload)
//	if errors.Is(err, errors.ErrLaneFull) {
//	    // drop, or retry with backoff
//	}
//
// Three wrappers attach a class:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// # Retry Configuration
//
// The ring never retries internally. Callers that want to wait for room in a
// lane use RetryConfig, which only retries transient errors:
//
//	cfg := errors.DefaultRetryConfig()
//	for attempt := 0; ; attempt++ {
//	    err := ring.Push(lane, payload)
//	    if !cfg.ShouldRetry(err, attempt) {
//	        return err
//	    }
//	    time.Sleep(cfg.BackoffDelay(attempt))
//	}
//
// ToRetryConfig converts to the retry package's Config for use with retry.Do.
//
// # Thread Safety
//
// Classification and wrapping are safe for concurrent use. ClassifiedError values
// are immutable after creation and may be shared between goroutines.
package errors
