package worker

import (
	"math/rand/v2"
	"time"
)

// RetryPolicy controls how failed sheet tasks are rescheduled.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter spreads retries by up to this fraction of the delay (0..1).
	Jitter float64
}

// DefaultRetryPolicy is used for every zero field passed to NewSheetsWorker.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:    5,
	InitialDelay:  2 * time.Second,
	MaxDelay:      time.Minute,
	BackoffFactor: 2,
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = DefaultRetryPolicy.MaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = DefaultRetryPolicy.InitialDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if r.BackoffFactor < 1 {
		r.BackoffFactor = DefaultRetryPolicy.BackoffFactor
	}
	return r
}

// NextDelay returns the backoff before retry number attempt (1-based).
// A zero InitialDelay means one second; MaxDelay caps the result when set.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := base
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * factor)
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			return r.MaxDelay
		}
		if d <= 0 {
			return base
		}
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// Schedule decides what happens after a failed attempt: the time of the next
// try, or ok=false once the task has used up its retries.
func (r RetryPolicy) Schedule(now time.Time, attempt int) (next time.Time, ok bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return time.Time{}, false
	}

	d := r.NextDelay(attempt)
	if r.Jitter > 0 {
		j := min(r.Jitter, 1)
		d += time.Duration(rand.Float64() * j * float64(d))
	}
	return now.Add(d), true
}
