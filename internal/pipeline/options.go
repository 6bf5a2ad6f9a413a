package pipeline

import (
	"time"

	"github.com/bdougie/firewatch/internal/storage"
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithSpawner routes Launch through s.
func WithSpawner(s Spawner) Option {
	return func(r *Runner) {
		if s != nil {
			r.spawner = s
		}
	}
}

// WithRecorder stores every cycle outcome in rec.
func WithRecorder(rec storage.Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithTimeout bounds each cycle.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSourceName labels recorded cycles with the video source.
func WithSourceName(name string) Option {
	return func(r *Runner) {
		r.source = name
	}
}
