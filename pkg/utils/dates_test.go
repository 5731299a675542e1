package utils

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-19")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.Year() != 2026 || d.Month() != 2 || d.Day() != 19 || d.Location() != time.UTC {
		t.Errorf("ParseDate = %v, want 2026-02-19 UTC", d)
	}

	if _, err := ParseDate("19/02/2026"); err == nil {
		t.Error("expected error for non ISO date")
	}
}

func TestDateRangeInclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)

	from, to := DateRange(start, end)
	if !from.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}
	if !to.Equal(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v, want start of the day after end", to)
	}
}

func TestTrailingWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	from, to := TrailingWindow(now, 7)
	if !to.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v", to)
	}
	if !from.Equal(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}

	from, to = TrailingWindow(now, 0)
	if to.Sub(from) != 24*time.Hour {
		t.Errorf("non-positive days should clamp to one day, got %v", to.Sub(from))
	}
}

func TestCanonicalTime(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	in := time.Date(2026, 1, 2, 3, 4, 5, 999, loc)
	got := CanonicalTime(in)
	if got.Location() != time.UTC || got.Nanosecond() != 0 || !got.Equal(in.Truncate(time.Second)) {
		t.Errorf("CanonicalTime = %v", got)
	}
	if FormatDate(in) != "2026-01-02" {
		t.Errorf("FormatDate = %s", FormatDate(in))
	}
}
