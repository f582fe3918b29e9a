// Package scheduler invokes a job at start-up and then on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Job func(ctx context.Context)

type Scheduler struct {
	interval    time.Duration
	job         Job
	logger      *logrus.Entry
	skipInitial bool

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

type Option func(*Scheduler)

// SkipInitialRun makes the first run wait for the first tick.
func SkipInitialRun() Option {
	return func(s *Scheduler) { s.skipInitial = true }
}

func New(interval time.Duration, job Job, logger *logrus.Entry, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logrus.WithField("component", "scheduler")
	}
	s := &Scheduler{
		interval: interval,
		job:      job,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the job once immediately, unless SkipInitialRun was given, and
// then on every tick until ctx is cancelled. The job runs on the scheduler
// goroutine, so ticks that arrive while it is still running are coalesced by
// the ticker. Start is a no-op after the first call.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the loop started by Start has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.logger.WithField("interval", s.interval.String()).Info("Scheduler started")
	if !s.skipInitial {
		s.job(ctx)
	}

	if s.interval <= 0 {
		s.logger.Info("No interval configured, scheduler exiting after initial run")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.job(ctx)
		}
	}
}
