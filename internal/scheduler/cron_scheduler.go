// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/logging"
)

// Task is a scheduled job body.
type Task func(ctx context.Context) error

// CronScheduler runs tasks on standard five-field cron specs or
// descriptors such as "@daily" and "@every 6h".
type CronScheduler struct {
	cron    *cron.Cron
	jobs    map[string]cron.EntryID
	mu      sync.RWMutex
	timeout time.Duration
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewCronScheduler creates a started scheduler. Each run is bounded by
// timeout; zero means no bound.
func NewCronScheduler(timeout time.Duration, logger *zap.Logger) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &CronScheduler{
		cron:    cron.New(),
		jobs:    make(map[string]cron.EntryID),
		timeout: timeout,
		logger:  logging.Component(logger, "scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cron.Start()
	return s
}

// Schedule registers task under name.
func (s *CronScheduler) Schedule(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job with name '%s' already exists", name)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		s.runTask(name, task)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job '%s': %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Next returns the next activation of the named job.
func (s *CronScheduler) Next(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *CronScheduler) runTask(name string, task Task) {
	start := time.Now()
	logger := s.logger.With(zap.String("job", name))
	logger.Info("Starting scheduled job")

	ctx, cancel := s.ctx, context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
	}
	defer cancel()

	if err := task(ctx); err != nil {
		logger.Error("Scheduled job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	logger.Info("Scheduled job completed", zap.Duration("duration", time.Since(start)))
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *CronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()
	s.jobs = make(map[string]cron.EntryID)

	select {
	case <-done.Done():
		s.logger.Info("Cron scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop: %w", ctx.Err())
	}
}
