package testfixtures

import (
	"sync/atomic"
	"time"
)

// Clock is a manual UTC time source. Reports are bucketed by hour, so besides
// the instant it hands out the hour bucket a report made now would target.
type Clock struct {
	nanos atomic.Int64
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	c := &Clock{}
	c.nanos.Store(start.UnixNano())
	return c
}

// Now returns the clock's instant in UTC.
func (c *Clock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

// NowFunc returns Now for injection, or time.Now on a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Hour returns the start of the UTC hour containing Now.
func (c *Clock) Hour() time.Time {
	return c.Now().Truncate(time.Hour)
}

// Advance moves the clock by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	return time.Unix(0, c.nanos.Add(int64(d))).UTC()
}

// NextHour moves the clock one hour forward, keeping its offset within the
// hour, and returns the new hour bucket.
func (c *Clock) NextHour() time.Time {
	return c.Advance(time.Hour).Truncate(time.Hour)
}
