package backoff

import "time"

// Backoff computes the delay before a retry attempt. retries is the
// number of attempts already made, so the first retry asks for
// Duration(0).
type Backoff interface {
	Duration(retries int) time.Duration
}

// ExponentialBackoff grows the delay by a constant factor per retry:
// Interval * Base^retries.
type ExponentialBackoff struct {
	Interval time.Duration
	Base     int
}

func (b *ExponentialBackoff) Duration(retries int) time.Duration {
	d := b.Interval
	for i := 0; i < retries; i++ {
		d *= time.Duration(b.Base)
	}
	return d
}

// ConstantBackoff waits the same Interval regardless of retry count.
type ConstantBackoff struct {
	Interval time.Duration
}

func (b *ConstantBackoff) Duration(retries int) time.Duration {
	return b.Interval
}

// ScheduledBackoff follows an explicit schedule. Attempts beyond the
// schedule reuse its last entry; an empty schedule means no delay.
type ScheduledBackoff struct {
	Schedule []time.Duration
}

func (b *ScheduledBackoff) Duration(retries int) time.Duration {
	if len(b.Schedule) == 0 {
		return 0
	}
	if retries < 0 {
		retries = 0
	}
	if retries >= len(b.Schedule) {
		return b.Schedule[len(b.Schedule)-1]
	}
	return b.Schedule[retries]
}
