// Package scheduler runs the monitoring cycle on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dqmon/internal"

	"github.com/robfig/cron/v3"
)

// Job is one monitoring cycle
type Job func(ctx context.Context) error

// Options configures the schedule
type Options struct {
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool
}

// Scheduler triggers the job every interval. A tick that arrives while the
// previous cycle is still running is skipped.
type Scheduler struct {
	job  Job
	opts Options
	log  *internal.Logger
	// wrapped is shared by the timed runs and the initial run so they skip each other
	wrapped cron.Job

	initial sync.WaitGroup
	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a scheduler. The interval must be at least one second.
func New(job Job, opts Options, log *internal.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler job is nil")
	}
	if opts.Interval < time.Second {
		return nil, fmt.Errorf("schedule interval %s is below one second", opts.Interval)
	}
	if log == nil {
		log = internal.Nop()
	}
	s := &Scheduler{job: job, opts: opts, log: log, ctx: context.Background()}
	l := cronLogger{log}
	s.wrapped = cron.NewChain(cron.Recover(l), cron.SkipIfStillRunning(l)).Then(cron.FuncJob(s.runOnce))
	return s, nil
}

// Spec returns the cron expression for the interval
func (s *Scheduler) Spec() string {
	return "@every " + s.opts.Interval.String()
}

// Start schedules the job and returns immediately. With RunOnStart the first
// cycle runs right away instead of after one interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New(cron.WithLogger(cronLogger{s.log}))
	if _, err := c.AddJob(s.Spec(), s.wrapped); err != nil {
		return fmt.Errorf("failed to schedule %q: %w", s.Spec(), err)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = c
	s.started = true
	c.Start()
	s.log.Info("Scheduler started: %s", s.Spec())

	if s.opts.RunOnStart {
		s.initial.Add(1)
		go func() {
			defer s.initial.Done()
			s.wrapped.Run()
		}()
	}
	return nil
}

// Stop cancels the running cycle, if any, and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	done := s.cron.Stop()
	s.mu.Unlock()

	<-done.Done()
	s.initial.Wait()
	s.log.Info("Scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is canceled
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Next returns the time of the next scheduled cycle, zero when stopped
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx := parent
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error("Scheduled cycle failed after %s: %v", time.Since(start), err)
		return
	}
	s.log.Debug("Scheduled cycle finished in %s", time.Since(start))
}

// cronLogger routes cron's own messages to the application logger
type cronLogger struct {
	log *internal.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
