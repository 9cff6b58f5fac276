// Package scheduler supervises long-running background jobs declared by
// plugins.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by Schedule after CancelAll.
var ErrStopped = errors.New("scheduler stopped")

// Job is a cancellable background task.
type Job struct {
	Name  string
	Owner string
	Run   func(ctx context.Context) error
}

// Scheduler runs jobs concurrently under one cancellation scope.
type Scheduler struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	group   errgroup.Group
	stopped bool
	running atomic.Int32
	log     *zap.Logger
}

// New creates a scheduler whose jobs are cancelled with parent or CancelAll.
func New(parent context.Context, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		log:    log.Named("scheduler"),
	}
}

// Schedule starts job immediately on its own goroutine.
func (s *Scheduler) Schedule(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no body", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}

	s.running.Add(1)
	s.group.Go(func() error {
		defer s.running.Add(-1)
		s.run(job)
		return nil
	})
	s.log.Info("job scheduled", zap.String("job", job.Name), zap.String("owner", job.Owner))
	return nil
}

// run executes one job. Failures end that job only.
func (s *Scheduler) run(job Job) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("job panicked", zap.String("job", job.Name), zap.Any("panic", p))
		}
	}()

	err := job.Run(s.ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		s.log.Debug("job finished", zap.String("job", job.Name))
	default:
		s.log.Error("job failed", zap.String("job", job.Name), zap.Error(err))
	}
}

// Running returns the number of jobs that have not yet returned.
func (s *Scheduler) Running() int {
	return int(s.running.Load())
}

// CancelAll cancels every job and waits for all of them to return.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	_ = s.group.Wait()
	s.log.Info("all jobs stopped")
}
