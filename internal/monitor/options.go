package monitor

import (
	"context"
	"time"
)

// Option applies a configuration option to the Loop.
type Option func(*Loop)

// WithDisplay shows every frame on d.
func WithDisplay(d Display) Option {
	return func(l *Loop) {
		if d != nil {
			l.display = d
		}
	}
}

// WithClock sets the time source used for sampling decisions.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithFrameRate paces playback to fps frames per second. Use it for recorded
// video; live sources pace themselves.
func WithFrameRate(fps float64) Option {
	return func(l *Loop) {
		if fps > 0 {
			l.frameGap = time.Duration(float64(time.Second) / fps)
		}
	}
}

// WithSleep replaces the wait used for pacing.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(l *Loop) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}
