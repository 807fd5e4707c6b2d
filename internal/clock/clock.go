// Package clock provides timezone-aware timestamps and RTH/ETH session
// classification, and the DST-safe bucket-origin computation the bar
// aggregator needs to keep intraday boundaries aligned to wall clock.
package clock

import (
	"time"
)

// Session names the classification of a moment relative to the
// configured trading calendar.
type Session int

const (
	SessionETH Session = iota // electronic / extended trading hours
	SessionRTH                // regular trading hours
	SessionClosed
)

func (s Session) String() string {
	switch s {
	case SessionRTH:
		return "RTH"
	case SessionETH:
		return "ETH"
	default:
		return "Closed"
	}
}

// Window is a daily time-of-day window in a specific location, e.g. RTH
// 09:30–16:00 America/New_York.
type Window struct {
	StartHour, StartMinute int
	EndHour, EndMinute     int
	Location               *time.Location
}

// Contains reports whether t's wall-clock time-of-day, interpreted in
// Location, falls within the window.
func (w Window) Contains(t time.Time) bool {
	local := t.In(w.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), w.StartHour, w.StartMinute, 0, 0, w.Location)
	end := time.Date(local.Year(), local.Month(), local.Day(), w.EndHour, w.EndMinute, 0, 0, w.Location)
	return !local.Before(start) && local.Before(end)
}

// SessionConfig classifies moments as RTH or ETH; Classify never
// returns SessionClosed. A nil RTH
// window means every moment is ETH (the all-hours session_config mode);
// Custom configs supply a per-product RTH window.
type SessionConfig struct {
	RTH *Window
}

// Classify returns the session for t.
func (c SessionConfig) Classify(t time.Time) Session {
	if c.RTH == nil {
		return SessionETH
	}
	if c.RTH.Contains(t) {
		return SessionRTH
	}
	return SessionETH
}

// Clock wraps time.Now behind an interface so tests can inject a fixed or
// simulated clock without touching wall time.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock, a thin wrapper over time.Now.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// BucketOrigin computes the DST-safe epoch origin for a timeframe bucket
// grid in loc: midnight of t's local calendar day, which the bar
// aggregator uses as the floor((t-origin)/period)*period+origin anchor.
// Recomputing this every call (rather than caching across days) is what
// keeps the grid aligned across a DST transition: the same wall-clock
// midnight is used, whatever the UTC offset, so minute bars still close
// on the wall-clock minute before and after a spring-forward or
// fall-back jump.
func BucketOrigin(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// CrossesDST reports whether the UTC offset for loc differs between
// before and after; used by the bar aggregator to decide whether to
// emit a session_transition event and re-anchor the bucket grid.
func CrossesDST(loc *time.Location, before, after time.Time) (crossed bool, offsetDelta time.Duration) {
	_, offBefore := before.In(loc).Zone()
	_, offAfter := after.In(loc).Zone()
	if offBefore == offAfter {
		return false, 0
	}
	return true, time.Duration(offAfter-offBefore) * time.Second
}

// NewYorkSessionStart returns the next occurrence of hour:minute in
// America/New_York at or after from, DST-aware by construction since it
// is expressed in that location's wall clock.
func NewYorkSessionStart(from time.Time, hour, minute int) (time.Time, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, err
	}
	local := from.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}
