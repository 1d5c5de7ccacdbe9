package retry

import "time"

// Backoff computes exponential retry delays: initial * 2^attempt, capped
// at Max. Attempt zero is the delay applied when the item is first queued.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait before the attempt following attemptCount
// failures. Guards against shift overflow for absurd attempt counts.
func (b Backoff) Delay(attemptCount int) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}

	delay := b.Initial
	for i := 0; i < attemptCount; i++ {
		delay *= 2
		if delay >= b.Max || delay < 0 {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}
