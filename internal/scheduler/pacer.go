package scheduler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer inserts the delays between spawns.
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
}

// TimerPacer sleeps on a timer and wakes early if ctx is done.
type TimerPacer struct{}

func (TimerPacer) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newCeiling returns a limiter enforcing a hard requests-per-second cap, or
// nil when rps is not positive.
func newCeiling(rps int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
