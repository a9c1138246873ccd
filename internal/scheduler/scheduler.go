// Package scheduler fires the periodic jobs of the service: polling every
// device, the daily network audit and poll cache cleanup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is the work of one job run.
type JobFunc func(ctx context.Context) error

// ErrDuplicateJob is returned when a job id is added twice.
var ErrDuplicateJob = errors.New("job already registered")

// JobInfo describes a registered job.
type JobInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   time.Time  `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int        `json:"runs"`
}

type job struct {
	id       string
	name     string
	schedule Schedule
	fn       JobFunc

	mu      sync.Mutex
	next    time.Time
	lastRun *time.Time
	lastErr string
	runs    int
}

// Scheduler runs each job in its own goroutine, so runs of one job never
// overlap.
type Scheduler struct {
	logger  *zap.Logger
	nowFunc func() time.Time

	mu     sync.Mutex
	jobs   map[string]*job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an empty Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		nowFunc: time.Now,
		jobs:    make(map[string]*job),
	}
}

// Add registers a job. Jobs added after Start begin immediately.
func (s *Scheduler) Add(id, name string, sched Schedule, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		return fmt.Errorf("%s: %w", id, ErrDuplicateJob)
	}
	j := &job{id: id, name: name, schedule: sched, fn: fn, next: sched.Next(s.nowFunc())}
	s.jobs[id] = j
	if s.ctx != nil {
		s.launch(j)
	}
	return nil
}

// Start launches every registered job.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.launch(j)
	}
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels every job and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Running reports whether the scheduler loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil && s.ctx.Err() == nil
}

// ListJobs returns the registered jobs ordered by id.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		info := JobInfo{
			ID:        j.id,
			Name:      j.name,
			Schedule:  j.schedule.String(),
			NextRun:   j.next,
			LastError: j.lastErr,
			Runs:      j.runs,
		}
		if j.lastRun != nil {
			t := *j.lastRun
			info.LastRun = &t
		}
		j.mu.Unlock()
		out = append(out, info)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// launch must be called with s.mu held.
func (s *Scheduler) launch(j *job) {
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			j.mu.Lock()
			wait := j.next.Sub(s.nowFunc())
			j.mu.Unlock()

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			s.run(ctx, j)

			j.mu.Lock()
			j.next = j.schedule.Next(s.nowFunc())
			j.mu.Unlock()
		}
	}()
}

// run executes one job run. Errors and panics are logged, never propagated.
func (s *Scheduler) run(ctx context.Context, j *job) {
	start := s.nowFunc()
	s.logger.Debug("job started", zap.String("job", j.id))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return j.fn(ctx)
	}()

	j.mu.Lock()
	j.lastRun = &start
	j.runs++
	j.lastErr = ""
	if err != nil {
		j.lastErr = err.Error()
	}
	j.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			zap.String("job", j.id),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("job completed",
		zap.String("job", j.id),
		zap.Duration("duration", time.Since(start)),
	)
}
