package experiment

import "time"

// Clock reports time elapsed since the experiment started.
type Clock interface {
	Elapsed() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock that starts now. time.Since uses the monotonic
// reading, so wall-clock adjustments do not affect trial durations.
func NewClock() Clock {
	return monotonicClock{start: time.Now()}
}

func (c monotonicClock) Elapsed() time.Duration {
	return time.Since(c.start)
}
