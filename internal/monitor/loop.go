// Package monitor runs the capture loop: read, resize, display, and sample a
// frame for analysis once per interval without ever waiting on the analysis.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/firewatch/internal/metrics"
	"github.com/bdougie/firewatch/internal/models"
	"github.com/bdougie/firewatch/internal/ratelimit"
)

// ErrSourceExhausted marks the end of the video stream
var ErrSourceExhausted = io.EOF

// Source yields frames until it returns io.EOF
type Source interface {
	NextFrame(ctx context.Context) (models.Frame, error)
	Release() error
}

// Display shows frames to the operator. Show reports true when the operator
// asked to stop.
type Display interface {
	Show(img image.Image) bool
	Close() error
}

// FrameStore holds the current sample
type FrameStore interface {
	Store(img image.Image) error
}

// Launcher starts an analysis cycle in the background and returns immediately
type Launcher interface {
	Launch(event models.SampleEvent) bool
}

// State of the loop
type State int

const (
	StateIdle State = iota
	StateReading
	StateSampling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateSampling:
		return "sampling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats counts what the loop did
type Stats struct {
	FramesRead    uint64
	Samples       uint64
	StoreFailures uint64
	Rejected      uint64
}

// Loop is the single sequential capture loop
type Loop struct {
	store    FrameStore
	launcher Launcher
	display  Display
	limiter  *ratelimit.Limiter
	interval time.Duration
	size     image.Point
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
	logger   *slog.Logger

	// frameGap paces file playback; zero reads as fast as the source allows
	frameGap  time.Duration
	nextFrame time.Time

	state State
	stats Stats
}

// NewLoop creates a loop sampling every interval and resizing frames to size
func NewLoop(store FrameStore, launcher Launcher, interval time.Duration, size image.Point, logger *slog.Logger, opts ...Option) *Loop {
	l := &Loop{
		store:    store,
		launcher: launcher,
		display:  nopDisplay{},
		limiter:  ratelimit.New(),
		interval: interval,
		size:     size,
		now:      time.Now,
		sleep:    sleepContext,
		logger:   logger.With("component", "monitor"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current loop state
func (l *Loop) State() State {
	return l.state
}

// Stats returns the loop counters
func (l *Loop) Stats() Stats {
	return l.stats
}

// Run reads frames from source until it is exhausted, the operator quits from
// the display, or ctx is cancelled. The source and display are released on
// every exit path. Exhaustion and operator stops return nil.
func (l *Loop) Run(ctx context.Context, source Source) error {
	defer func() {
		l.state = StateStopped
		if rerr := source.Release(); rerr != nil {
			l.logger.Warn("failed to release video source", "error", rerr)
		}
		if derr := l.display.Close(); derr != nil {
			l.logger.Warn("failed to close display", "error", derr)
		}
		l.logger.Info("monitoring completed",
			"frames", l.stats.FramesRead,
			"samples", l.stats.Samples)
	}()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("monitoring interrupted")
			return nil
		default:
		}

		l.state = StateReading
		frame, err := source.NextFrame(ctx)
		if errors.Is(err, ErrSourceExhausted) {
			l.logger.Info("video source exhausted")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}
		l.stats.FramesRead++
		metrics.RecordFrameRead()
		l.pace(ctx)

		img := Resize(frame.Image, l.size)
		if l.display.Show(img) {
			l.logger.Info("monitoring stopped by operator")
			return nil
		}

		l.sample(frame, img)
	}
}

// sample stores img and launches a cycle when the interval has elapsed
func (l *Loop) sample(frame models.Frame, img image.Image) {
	now := l.now()
	if !l.limiter.ShouldTrigger(now, l.interval) {
		return
	}
	l.state = StateSampling

	// A failed write still consumes the interval
	l.limiter.Record(now)

	if err := l.store.Store(img); err != nil {
		l.stats.StoreFailures++
		metrics.RecordFailure(metrics.CategoryFrameWrite)
		l.logger.Error("failed to store sample, skipping interval",
			"category", metrics.CategoryFrameWrite,
			"seq", frame.Seq,
			"error", err)
		return
	}

	event := models.SampleEvent{
		ID:        uuid.NewString(),
		Seq:       frame.Seq,
		SampledAt: now,
	}
	if !l.launcher.Launch(event) {
		l.stats.Rejected++
		return
	}
	l.stats.Samples++
	metrics.RecordSample()
	l.logger.Debug("analysis launched", "sample", event.ID, "seq", frame.Seq)
}

// pace holds each frame until its playback time so a video file is sampled
// at the rate it was recorded
func (l *Loop) pace(ctx context.Context) {
	if l.frameGap <= 0 {
		return
	}

	now := l.now()
	if l.nextFrame.IsZero() {
		l.nextFrame = now
	}
	if wait := l.nextFrame.Sub(now); wait > 0 {
		l.sleep(ctx, wait)
	} else {
		// Running behind: do not try to catch up in a burst
		l.nextFrame = now
	}
	l.nextFrame = l.nextFrame.Add(l.frameGap)
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type nopDisplay struct{}

func (nopDisplay) Show(image.Image) bool { return false }
func (nopDisplay) Close() error          { return nil }
