package pump

import (
	"context"
	stderrors "errors"

	"github.com/c360/prioring/errors"
	"github.com/c360/prioring/pkg/retry"
)

// Pusher is the producer side of a ring.
type Pusher interface {
	Push(lane uint8, data []byte) error
}

// PushWithRetry pushes data into lane, backing off while the lane is full.
// Any other ring error is returned at once, marked non-retryable. Once cfg
// is exhausted the last ErrLaneFull is returned wrapped.
//
// Each lane must have a single producer, so callers must not run two
// PushWithRetry calls for the same lane concurrently.
func PushWithRetry(ctx context.Context, ring Pusher, lane uint8, data []byte, cfg retry.Config) error {
	return retry.Do(ctx, cfg, func() error {
		err := ring.Push(lane, data)
		if err == nil || stderrors.Is(err, errors.ErrLaneFull) {
			return err
		}
		return retry.NonRetryable(err)
	})
}
