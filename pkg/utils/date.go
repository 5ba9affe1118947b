package utils

import "time"

// DateLayout is the canonical wire format for signal dates.
const DateLayout = "2006-01-02"

// TruncateToDay strips the time-of-day component, keeping the date in UTC.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DaysAgo returns the UTC date n days before t.
func DaysAgo(t time.Time, n int) time.Time {
	return TruncateToDay(t).AddDate(0, 0, -n)
}
