package retry

import (
	"math"
	"time"
)

// Policy defines an exponential backoff schedule.
//
// The delay for attempt n (zero-based) is Base doubled n times, capped
// at Ceiling. A zero Ceiling means no cap.
type Policy struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Ceiling is the maximum delay. Zero means uncapped.
	Ceiling time.Duration
}

// maxShift bounds the doubling exponent so Base<<n cannot overflow
// int64 nanoseconds. 2^62 ns is roughly 146 years.
const maxShift = 62

// Delay returns the backoff delay for the given zero-based attempt number.
//
// Delays double per attempt and saturate at Ceiling:
//
//	Policy{Base: 10s, Ceiling: 300s}
//	attempt 0 → 10s, 1 → 20s, 2 → 40s, ... 5+ → 300s
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}

	d := p.Base << uint(attempt)
	// A left shift past the top bit wraps; treat as saturated.
	if d < p.Base {
		d = time.Duration(math.MaxInt64)
	}
	if p.Ceiling > 0 && d > p.Ceiling {
		d = p.Ceiling
	}
	return d
}
