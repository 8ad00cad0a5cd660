// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// Clock is the time source injected into flows that need deterministic time in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return UTCNow()
}

// FixedClock always returns the same instant. Advance moves it forward.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.T
}

func (c *FixedClock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// ParseDateOrTime accepts RFC3339 timestamps and plain YYYY-MM-DD dates.
// dateOnly reports whether the input carried no time component.
func ParseDateOrTime(value string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), false, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err = time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return t.UTC(), true, nil
	}
	return time.Time{}, false, err
}

// EndOfDay returns the last instant, in UTC, of the calendar day containing t in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond).UTC()
}
