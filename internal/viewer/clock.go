package viewer

import "time"

// Clock measures frame deltas from wall-clock time.
type Clock struct {
	now  func() time.Time
	last time.Time
}

// NewClock returns a clock reading time.Now.
func NewClock() *Clock {
	return NewClockFunc(time.Now)
}

// NewClockFunc returns a clock reading now. Tests pass a fake.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Tick returns the seconds since the previous Tick and the current wall-clock
// time in milliseconds since the Unix epoch. The delta is zero on the first
// call and when the clock steps back.
func (c *Clock) Tick() (delta float32, nowMs float64) {
	t := c.now()
	if !c.last.IsZero() {
		delta = max(0, float32(t.Sub(c.last).Seconds()))
	}
	c.last = t
	return delta, float64(t.UnixNano()) / float64(time.Millisecond)
}
