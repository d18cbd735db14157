package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy returns the delay before retry attempt n, counting from 1
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows BaseDelay by Multiplier per attempt up to MaxDelay.
// JitterFactor in [0, 1] spreads each delay by up to that fraction either way.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff is tuned for checkpoint and export writes: 500ms, 1s, 2s ... 10s
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := math.Min(float64(b.BaseDelay)*math.Pow(b.Multiplier, float64(attempt-1)), float64(b.MaxDelay))
	if b.JitterFactor > 0 {
		d *= 1 + b.JitterFactor*(2*rand.Float64()-1)
	}
	return time.Duration(math.Max(d, 0))
}

// Wait sleeps for delay, returning early with ctx's error when it is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
