package clock

import (
	"fmt"
	"time"
)

// Clock is the single source of timestamps and the canonical time zone for
// the whole system. Every component that stamps or filters by time receives
// one instead of calling time.Now directly, so tests can pin the clock.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New loads the named time zone ("UTC", "Local", "Europe/Berlin", ...) and
// returns a real-time clock in that zone.
func New(tz string) (*Clock, error) {
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", tz, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// Fixed returns a clock frozen at t, for tests.
func Fixed(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Now returns the current time in the canonical zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Location returns the canonical zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Today returns the current calendar date as "2006-01-02".
func (c *Clock) Today() string {
	return c.Now().Format("2006-01-02")
}

// DayBounds returns the half-open interval [start, end) covering the given
// calendar date in the canonical zone. Filtering log entries with this range
// is equivalent to matching their date string in the stored zone.
func (c *Clock) DayBounds(date string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", date, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}
