// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paper-reader/internal/queue"
	"github.com/paper-reader/internal/worker"
)

// Scheduler submits papers for background processing and remembers which
// ones this process has enqueued but not started yet.
type Scheduler struct {
	q       queue.Queue
	mu      sync.Mutex
	pending map[int64]time.Time
}

// NewScheduler creates a scheduler on q.
func NewScheduler(q queue.Queue) *Scheduler {
	return &Scheduler{
		q:       q,
		pending: make(map[int64]time.Time),
	}
}

// Submit enqueues a processing run for paperID and returns without waiting
// for it.
func (s *Scheduler) Submit(ctx context.Context, paperID int64, reason string) error {
	now := time.Now().UTC()

	// marked before enqueueing so a fast worker cannot start it first
	s.mu.Lock()
	s.pending[paperID] = now
	s.mu.Unlock()

	if err := EnqueueProcessPaper(ctx, s.q, ProcessPaperPayload{
		PaperID:     paperID,
		Reason:      reason,
		RequestedAt: now,
	}); err != nil {
		s.started(paperID)
		return fmt.Errorf("failed to schedule paper %d: %w", paperID, err)
	}
	return nil
}

// Pending reports whether a job for paperID is waiting in the queue.
func (s *Scheduler) Pending(paperID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[paperID]
	return ok
}

func (s *Scheduler) started(paperID int64) {
	s.mu.Lock()
	delete(s.pending, paperID)
	s.mu.Unlock()
}

// Handler returns the worker handler that runs process paper jobs.
func (s *Scheduler) Handler(runner Runner) worker.HandlerFunc {
	return func(ctx context.Context, job queue.Job) error {
		if payload, err := DecodeProcessPaper(job); err == nil {
			s.started(payload.PaperID)
		}
		return HandleProcessPaper(ctx, runner, job)
	}
}
