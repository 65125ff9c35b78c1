package polling

import (
	"math"
	"math/rand"
	"time"
)

// Cadence decides how long after the scheduled start of attempt n the next
// attempt should start. Attempts are numbered from 1. Implementations must
// return positive delays.
type Cadence interface {
	Next(attempt int) time.Duration
}

// fixed is the default cadence: a constant interval between scheduled
// attempt starts.
type fixed struct {
	interval time.Duration
}

// Fixed returns a cadence with a constant interval.
func Fixed(interval time.Duration) Cadence {
	return fixed{interval: interval}
}

func (f fixed) Next(int) time.Duration { return f.interval }

// Backoff is a cadence whose interval grows geometrically per attempt, with
// optional random jitter. The zero Multiplier and Max behave as 1.0 and
// unbounded respectively.
type Backoff struct {
	// Initial is the delay between the first and second attempt.
	Initial time.Duration
	// Multiplier scales the delay per attempt; values <= 1 keep it fixed.
	Multiplier float64
	// Max caps the delay; zero means no cap.
	Max time.Duration
	// Jitter is the fraction of the delay (0..1) randomized around it.
	Jitter float64
}

func (b Backoff) Next(attempt int) time.Duration {
	d := float64(b.Initial)
	if b.Multiplier > 1 && attempt > 1 {
		d *= math.Pow(b.Multiplier, float64(attempt-1))
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		// Uniform in [d*(1-jitter), d*(1+jitter)].
		d *= 1 + b.Jitter*(2*rand.Float64()-1)
	}
	if d < 1 {
		d = 1
	}
	return time.Duration(d)
}
