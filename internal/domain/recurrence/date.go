// Package recurrence implements the calendar arithmetic behind recurring invoices.
// All dates are calendar days at UTC midnight; time of day and zone are discarded.
package recurrence

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on invoices
const DateLayout = "2006-01-02"

// ParseDate parses an ISO date or RFC3339 timestamp into a UTC calendar date
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return StartOfDay(t), true
	}
	return time.Time{}, false
}

// FormatDate renders a calendar date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// StartOfDay truncates t to UTC midnight of its UTC calendar day
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a calendar date by n days
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamped moves a calendar date by n months, keeping the day of month
// unless the target month is shorter, in which case its last day is used.
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.UTC().Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
