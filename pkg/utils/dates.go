package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the API and CLI.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDate formats t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateRange converts an inclusive [start, end] pair of calendar dates into
// the half-open instant range [from, to).
func DateRange(start, end time.Time) (from, to time.Time) {
	return DayStart(start), DayStart(end).AddDate(0, 0, 1)
}

// CanonicalTime is the form in which article timestamps are stored:
// UTC with second precision.
func CanonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// TrailingWindow returns the half-open range covering the last `days`
// calendar days up to and including the day of now.
func TrailingWindow(now time.Time, days int) (from, to time.Time) {
	if days < 1 {
		days = 1
	}
	to = DayStart(now).AddDate(0, 0, 1)
	from = to.AddDate(0, 0, -days)
	return from, to
}
