// Package clock provides the time source used by the ledger and the
// calendar arithmetic for due dates.
package clock

import "time"

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock
type Func func() time.Time

// Now implements Clock
func (f Func) Now() time.Time { return f() }

// System returns a clock reading wall time in the given location
func System(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Func(func() time.Time { return time.Now().In(loc) })
}

// Fixed returns a clock that always reports t
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

// Date truncates t to its calendar day. The result is midnight UTC of the
// day t falls on in its own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of c.Now()
func Today(c Clock) time.Time {
	return Date(c.Now())
}

// AddMonths adds n calendar months to d. When the target month is shorter
// the day is clamped to its last day, so Jan 31 + 1 month is Feb 28 (or 29).
func AddMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
	if last := daysIn(first); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

// AddYears adds n calendar years to d with the same clamping as AddMonths
func AddYears(d time.Time, n int) time.Time {
	return AddMonths(d, 12*n)
}

// StartOfDay returns 00:00 of the given date in loc
func StartOfDay(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
