// Package streak computes consecutive-day stamp streaks on venue-local dates.
package streak

import (
	"time"

	"cloud.google.com/go/civil"
)

// State is the streak portion of a guest's progress. A zero Last means the
// guest has never stamped.
type State struct {
	Current int
	Longest int
	Last    civil.Date
}

// Advance applies one new stamp collected on today.
//
// Same day keeps the streak, the following day extends it, and any gap
// restarts it at one. A today earlier than Last (clock or timezone change)
// is treated as the same day so a streak never resets backwards.
func Advance(prev State, today civil.Date) State {
	next := prev
	switch {
	case !prev.Last.IsValid():
		next.Current = 1
		next.Last = today
	case !today.After(prev.Last):
		if next.Current < 1 {
			next.Current = 1
		}
	case prev.Last.AddDays(1) == today:
		next.Current = prev.Current + 1
		next.Last = today
	default:
		next.Current = 1
		next.Last = today
	}
	if next.Longest < next.Current {
		next.Longest = next.Current
	}
	return next
}

// Today returns the civil date of now in loc. A nil loc means UTC.
func Today(now time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(now.In(loc))
}

// ParseDate reads a stored YYYY-MM-DD value. Blank or invalid input yields
// the zero date.
func ParseDate(s string) civil.Date {
	if s == "" {
		return civil.Date{}
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}
	}
	return d
}

// FormatDate renders d for storage; the zero date renders as "".
func FormatDate(d civil.Date) string {
	if !d.IsValid() {
		return ""
	}
	return d.String()
}
