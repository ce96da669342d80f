package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddJob_Validation(t *testing.T) {
	s := NewScheduler()

	if err := s.AddJob(Job{Name: "x", Schedule: "not a cron", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("invalid schedule must be rejected")
	}
	if err := s.AddJob(Job{Schedule: "* * * * *", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("nameless job must be rejected")
	}
	if err := s.AddJob(Job{Name: "ok", Schedule: "*/30 * * * *", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
}

func TestTick_FiresDueJobs(t *testing.T) {
	s := NewScheduler()

	var everyMinute, hourly atomic.Int32
	if err := s.AddJob(Job{Name: "minute", Schedule: "* * * * *", Run: func(context.Context) error {
		everyMinute.Add(1)
		return nil
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddJob(Job{Name: "hourly", Schedule: "0 * * * *", Run: func(context.Context) error {
		hourly.Add(1)
		return nil
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	// 10:30 fires only the every-minute job.
	s.tick(context.Background(), time.Date(2026, 5, 1, 10, 30, 0, 0, time.Local))
	if everyMinute.Load() != 1 || hourly.Load() != 0 {
		t.Fatalf("at :30 got minute=%d hourly=%d", everyMinute.Load(), hourly.Load())
	}

	// 11:00 fires both.
	s.tick(context.Background(), time.Date(2026, 5, 1, 11, 0, 0, 0, time.Local))
	if everyMinute.Load() != 2 || hourly.Load() != 1 {
		t.Fatalf("at :00 got minute=%d hourly=%d", everyMinute.Load(), hourly.Load())
	}
}

func TestTick_JobErrorDoesNotStopOthers(t *testing.T) {
	s := NewScheduler()

	var ran atomic.Bool
	if err := s.AddJob(Job{Name: "failing", Schedule: "* * * * *", Run: func(context.Context) error {
		return errors.New("boom")
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddJob(Job{Name: "healthy", Schedule: "* * * * *", Run: func(context.Context) error {
		ran.Store(true)
		return nil
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.tick(context.Background(), time.Now())
	if !ran.Load() {
		t.Fatal("healthy job must run despite the failing one")
	}
}

func TestStartStop(t *testing.T) {
	s := NewScheduler()
	if err := s.AddJob(Job{Name: "noop", Schedule: "* * * * *", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.Start(context.Background())
	s.Stop()
}
