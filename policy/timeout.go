package policy

import (
	"math"
	"time"
)

// A Timeout maps a zero-based attempt number to a duration. The node uses it
// to decide how long to wait between retries of a send.
type Timeout func(attempt int) time.Duration

// ConstantTimeout always returns the same duration.
func ConstantTimeout(duration time.Duration) Timeout {
	return func(int) time.Duration {
		return duration
	}
}

// MaxTimeout clamps another Timeout to an upper bound.
func MaxTimeout(max time.Duration, timeout Timeout) Timeout {
	return func(attempt int) time.Duration {
		if d := timeout(attempt); d < max {
			return d
		}
		return max
	}
}

// LinearBackoff scales another Timeout by (1 + rate*attempt), so that the
// first attempt is unscaled.
func LinearBackoff(rate float64, timeout Timeout) Timeout {
	return func(attempt int) time.Duration {
		return saturate((1 + rate*float64(attempt)) * float64(timeout(attempt)))
	}
}

// ExponentialBackoff scales another Timeout by rate^attempt. With a rate of 2
// and a constant base B, this is the doubling schedule B, 2B, 4B, ... until it
// saturates at the largest duration.
func ExponentialBackoff(rate float64, timeout Timeout) Timeout {
	return func(attempt int) time.Duration {
		return saturate(math.Pow(rate, float64(attempt)) * float64(timeout(attempt)))
	}
}

// saturate converts nanoseconds to a duration, clamping values that do not
// fit.
func saturate(ns float64) time.Duration {
	switch {
	case math.IsNaN(ns):
		return 0
	case ns >= math.MaxInt64:
		return math.MaxInt64
	case ns <= math.MinInt64:
		return math.MinInt64
	}
	return time.Duration(ns)
}
