package models

import (
	"math"
	"time"
)

// Day is 24 hours.
const Day = 24 * time.Hour

// Days converts d into fractional days.
func Days(d time.Duration) float64 {
	return d.Hours() / 24
}

// WholeDays converts d into whole days, rounding toward negative infinity.
func WholeDays(d time.Duration) int {
	return int(math.Floor(Days(d)))
}

// AddDays adds a fractional number of days to t.
func AddDays(t time.Time, days float64) time.Time {
	return t.Add(time.Duration(days * float64(Day)))
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns midnight of the Monday that starts t's calendar week.
func WeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
