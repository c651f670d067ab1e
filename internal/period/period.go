// Package period collapses continuous timestamps into discrete buckets.
//
// A bucket is one calendar day in normal mode, or one calendar minute in
// accelerated mode. Accelerated mode substitutes minutes for days uniformly
// so multi-day behavior can be observed within seconds.
package period

import "time"

// Mode selects the bucket granularity.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeAccelerated Mode = "accelerated"
)

// ParseMode maps a stored string to a Mode, defaulting to normal.
func ParseMode(s string) Mode {
	if Mode(s) == ModeAccelerated {
		return ModeAccelerated
	}
	return ModeNormal
}

// Key returns a string identical for any two instants falling in the same
// period, computed in t's location.
func Key(t time.Time, m Mode) string {
	if m == ModeAccelerated {
		return t.Format("2006-01-02T15:04")
	}
	return t.Format("2006-01-02")
}

// Start truncates t to the beginning of its period.
func Start(t time.Time, m Mode) time.Time {
	if m == ModeAccelerated {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Next advances t by exactly one period unit. Days step by calendar date,
// not 24h, so the axis stays aligned across DST transitions.
func Next(t time.Time, m Mode) time.Time {
	if m == ModeAccelerated {
		return t.Add(time.Minute)
	}
	return t.AddDate(0, 0, 1)
}
