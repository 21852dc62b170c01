package worker

import (
	"math"
	"time"
)

// RetryPolicy returns the delay before the next attempt. attempt is the zero-based
// number of the attempt that just failed.
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff waits Base^attempt seconds.
type ExponentialBackoff struct {
	Base int
}

func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	base := b.Base
	if base < 1 {
		base = 1
	}
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(math.Pow(float64(base), float64(attempt)) * float64(time.Second))
}
