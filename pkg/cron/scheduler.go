// Package cron runs the bot's background jobs on cron schedules: the idle
// buffer sweep and daily maintenance.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

// Job is one scheduled task. Errors are logged, never fatal.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler ticks once a minute and fires every job whose cron expression
// is due.
type Scheduler struct {
	jobs   []Job
	parser *gronx.Gronx
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func NewScheduler() *Scheduler {
	return &Scheduler{parser: gronx.New()}
}

// AddJob registers a job. The schedule is validated up front so a config
// typo fails at startup, not silently at runtime.
func (s *Scheduler) AddJob(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("cron job needs a name and a run func")
	}
	if !s.parser.IsValid(job.Schedule) {
		return fmt.Errorf("invalid cron schedule %q for job %s", job.Schedule, job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	jobCount := len(s.jobs)
	s.mu.Unlock()

	logger.InfoCF("cron", "Scheduler started", map[string]any{"jobs": jobCount})
	go s.loop(runCtx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	logger.InfoC("cron", "Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, job := range jobs {
		due, err := s.parser.IsDue(job.Schedule, now)
		if err != nil {
			logger.ErrorCF("cron", "schedule check failed", map[string]any{
				"job":   job.Name,
				"error": err.Error(),
			})
			continue
		}
		if !due {
			continue
		}

		logger.DebugCF("cron", "Job firing", map[string]any{"job": job.Name})
		if err := job.Run(ctx); err != nil {
			logger.ErrorCF("cron", "Job failed", map[string]any{
				"job":   job.Name,
				"error": err.Error(),
			})
		}
	}
}
