// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/paper-reader/internal/logger"
)

// StaleLister finds papers left queued since before cutoff.
type StaleLister interface {
	ListStaleQueued(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// Sweeper periodically resubmits papers whose queued job was lost, for
// example with the memory queue across a restart.
type Sweeper struct {
	papers    StaleLister
	scheduler *Scheduler
	grace     time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// NewSweeper creates a sweeper. Papers queued for less than grace are left
// alone.
func NewSweeper(papers StaleLister, scheduler *Scheduler, grace time.Duration) *Sweeper {
	return &Sweeper{
		papers:    papers,
		scheduler: scheduler,
		grace:     grace,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start runs Sweep on schedule (cron spec or @every descriptor) until Stop.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			logger.Errorf("[SWEEPER] sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	logger.Printf("[SWEEPER] started schedule=%q grace=%s", schedule, s.grace)
	return nil
}

// Stop halts the schedule and waits for a running sweep to return.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep resubmits every stale queued paper not already pending in this
// process and returns how many were submitted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.papers.ListStaleQueued(ctx, s.now().Add(-s.grace))
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, id := range ids {
		if s.scheduler.Pending(id) {
			continue
		}
		if err := s.scheduler.Submit(ctx, id, "sweep"); err != nil {
			return submitted, err
		}
		submitted++
	}
	if submitted > 0 {
		logger.Printf("[SWEEPER] resubmitted %d stale papers", submitted)
	}
	return submitted, nil
}
