// Package cronjobs owns the periodic triggers: feed ingestion and severe-record
// alert dispatch. A Scheduler is started exactly once.
package cronjobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner with an explicit lifecycle.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	names   map[string]cron.EntryID
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[string]cron.EntryID),
	}
}

// Add registers fn under a standard five-field cron spec. Names must be unique.
func (s *Scheduler) Add(spec, name string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.names[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}
	s.names[name] = id
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start begins firing jobs. A second call returns ErrAlreadyStarted.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.names)))
	return nil
}

// Stop halts scheduling, cancels running jobs' context and waits for them
// to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// Next reports the next planned run of a job, mostly for diagnostics.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.names[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) run(name string, fn JobFunc) {
	start := time.Now()
	s.logger.Info("job running", zap.String("job", name))

	if err := fn(s.ctx); err != nil {
		s.logger.Error("job failed",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

// cronLogger satisfies cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Sugar().Debugw("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Sugar().Errorw("cron: "+msg, append(kv, "error", err)...)
}
