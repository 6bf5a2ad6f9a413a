// Package ratelimit decides when the monitor loop may sample another frame.
package ratelimit

import "time"

// Limiter tracks the time of the last analysis trigger.
// It is not safe for concurrent use; the monitor loop owns it.
type Limiter struct {
	last time.Time
	set  bool
}

// New returns a limiter that has never triggered
func New() *Limiter {
	return &Limiter{}
}

// ShouldTrigger reports whether at least interval has elapsed since the last
// recorded trigger. The first call on a fresh limiter always returns true.
// It does not record anything; call Record once the sample is actually taken.
func (l *Limiter) ShouldTrigger(now time.Time, interval time.Duration) bool {
	if !l.set {
		return true
	}
	return now.Sub(l.last) >= interval
}

// Record marks now as the last trigger time
func (l *Limiter) Record(now time.Time) {
	l.last = now
	l.set = true
}

// Last returns the last recorded trigger time and whether one exists
func (l *Limiter) Last() (time.Time, bool) {
	return l.last, l.set
}
