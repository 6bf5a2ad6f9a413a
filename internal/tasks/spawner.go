// Package tasks launches fire-and-forget background work.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bdougie/firewatch/internal/metrics"
)

// Spawner starts tasks without waiting for them.
// With a limit of zero or less there is no bound on live tasks.
type Spawner struct {
	group   errgroup.Group
	ctx     context.Context
	logger  *slog.Logger
	running atomic.Int64
}

// NewSpawner creates a spawner. Tasks receive ctx stripped of cancellation, so
// stopping the caller does not abort work already launched.
func NewSpawner(ctx context.Context, limit int, logger *slog.Logger) *Spawner {
	s := &Spawner{
		ctx:    context.WithoutCancel(ctx),
		logger: logger.With("component", "tasks"),
	}
	if limit > 0 {
		s.group.SetLimit(limit)
	}
	return s
}

// Spawn launches fn in the background. It never blocks: when the limit is
// reached the task is dropped and Spawn returns false.
func (s *Spawner) Spawn(name string, fn func(ctx context.Context)) bool {
	// Counted before launch so Running sees an accepted task at once
	s.running.Add(1)
	ok := s.group.TryGo(func() error {
		defer s.running.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				metrics.RecordFailure(metrics.CategoryTaskPanic)
				s.logger.Error("task panicked",
					"category", metrics.CategoryTaskPanic,
					"task", name,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
			}
		}()

		fn(s.ctx)
		return nil
	})
	if !ok {
		s.running.Add(-1)
		metrics.RecordFailure(metrics.CategoryTaskRejected)
		s.logger.Warn("task dropped: concurrency limit reached",
			"category", metrics.CategoryTaskRejected,
			"task", name)
	}
	return ok
}

// Running returns the number of live tasks
func (s *Spawner) Running() int64 {
	return s.running.Load()
}

// Wait blocks until every launched task has finished or ctx is done
func (s *Spawner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tasks still running: %w", ctx.Err())
	}
}
