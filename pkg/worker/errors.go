package worker

import (
	stderrors "errors"
	"fmt"

	"github.com/c360/prioring/errors"
)

// Sentinel errors for worker pool operations. Lifecycle and backpressure
// errors wrap the shared sentinels so errors.IsTransient and errors.Is work
// across packages.
var (
	// ErrPoolNotStarted indicates Submit was called before Start
	ErrPoolNotStarted = fmt.Errorf("worker pool: %w", errors.ErrNotStarted)

	// ErrPoolStopped indicates the pool has been stopped
	ErrPoolStopped = fmt.Errorf("worker pool: %w", errors.ErrAlreadyStopped)

	// ErrPoolAlreadyStarted indicates Start was called on a started pool
	ErrPoolAlreadyStarted = fmt.Errorf("worker pool: %w", errors.ErrAlreadyStarted)

	// ErrQueueFull indicates the work queue is at capacity
	ErrQueueFull = fmt.Errorf("worker pool: %w", errors.ErrQueueFull)

	// ErrNilProcessor indicates a nil processor function was provided
	ErrNilProcessor = stderrors.New("processor function cannot be nil")

	// ErrStopTimeout indicates the pool didn't stop within the timeout
	ErrStopTimeout = stderrors.New("timeout waiting for workers to stop")
)
