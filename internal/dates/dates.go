// Package dates converts between calendar days and their canonical string keys
// and locates the Monday that anchors a day's week.
package dates

import (
	"fmt"
	"time"
)

// KeyLayout is the canonical date-key format, zero padded.
const KeyLayout = "2006-01-02"

// Key formats t using its own location's calendar date, never UTC.
func Key(t time.Time) string {
	return t.Format(KeyLayout)
}

// ParseKey returns the start of the day named by key in loc.
func ParseKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.Parse(KeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	y, m, d := t.Date()
	return StartOfDay(y, m, d, loc), nil
}

// StartOfDay returns the first instant of the given calendar day in loc.
// Out-of-range days and months are normalised the way time.Date does it. Where
// a DST change skips local midnight the result is the first hour that exists,
// which can be 01:00.
func StartOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	y, m, d := time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	for {
		ty, tm, td := t.Date()
		if ty == y && tm == m && td == d {
			return t
		}
		// time.Date resolved the missing midnight onto the previous day.
		t = t.Add(time.Hour)
	}
}

// IsKey reports whether s is a well formed date key.
func IsKey(s string) bool {
	if len(s) != len(KeyLayout) {
		return false
	}
	_, err := time.Parse(KeyLayout, s)
	return err == nil
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return StartOfDay(y, m, d, t.Location())
}

// AddDays moves t by n calendar days and returns the start of that day.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return StartOfDay(y, m, d+n, t.Location())
}

// MondayOf returns midnight of the Monday on or before t. Sunday belongs to the
// week it ends, so a Sunday maps six days back.
func MondayOf(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return AddDays(t, -(weekday - 1))
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// SameDay compares calendar dates, ignoring time of day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ShiftMonth moves (year, month) by delta months, rolling over year boundaries.
func ShiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// ColumnOf maps a weekday to its Monday-first grid column: Monday is 0 and
// Sunday is 6.
func ColumnOf(wd time.Weekday) int {
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}
