// Package timeutil holds the small date helpers shared by the matcher,
// the orchestrator and the report renderer.
package timeutil

import (
	"fmt"
	"math"
	"time"
)

// FloatToTime formats fractional hours as "HHhMMm", e.g. 2.5 -> "02h30m".
func FloatToTime(hours float64) string {
	return fmt.Sprintf("%02dh%02dm", int(hours), int(math.Mod(hours, 1)*60))
}

// DayStart returns t truncated to 00:00:00 in t's location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayEnd returns t at 23:59:59 in t's location.
func DayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day, each in
// its own location. Redmine dates carry no time of day, so this is the
// comparison used when lining up a timestamp against a booking date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
