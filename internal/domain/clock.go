package domain

import "time"

// Clock is the wall-clock source; alerts are always computed from an
// injected clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today is the calendar day of c.Now() in loc. A nil loc means UTC.
func Today(c Clock, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(c.Now().In(loc))
}
