// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paper-reader/internal/logger"
	"github.com/paper-reader/internal/queue"
)

// HandlerFunc processes a job. It should return an error if processing fails.
type HandlerFunc func(ctx context.Context, job queue.Job) error

// StartWorkers runs workerCount workers that process jobs from q until ctx is
// cancelled, then returns once every worker has stopped.
func StartWorkers(ctx context.Context, q queue.Queue, handler HandlerFunc, workerCount int) error {
	if workerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", workerCount)
	}
	logger.Printf("StartWorkers: workerCount=%d", workerCount)

	var wg sync.WaitGroup
	wg.Add(workerCount)

	for i := 0; i < workerCount; i++ {
		workerID := i + 1
		go func() {
			defer wg.Done()
			workerLoop(ctx, q, handler, workerID)
		}()
	}

	wg.Wait()
	logger.Printf("StartWorkers: all workers stopped")
	return nil
}

// workerLoop is the main loop for a single worker.
func workerLoop(ctx context.Context, q queue.Queue, handler HandlerFunc, workerID int) {
	logger.Debugf("workerLoop: workerID=%d started", workerID)

	for {
		select {
		case <-ctx.Done():
			logger.Debugf("workerLoop: workerID=%d context cancelled, stopping", workerID)
			return
		default:
		}

		job, err := q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrClosed) {
				logger.Debugf("workerLoop: workerID=%d stopping: %v", workerID, err)
				return
			}
			logger.Errorf("workerLoop: workerID=%d dequeue error: %v, retrying", workerID, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		logger.Printf("workerLoop: workerID=%d processing job type=%s id=%s", workerID, job.Type, job.ID)
		start := time.Now()

		if err := runHandler(ctx, handler, job); err != nil {
			logger.Errorf("workerLoop: workerID=%d handler error for job type=%s id=%s: %v", workerID, job.Type, job.ID, err)
			continue
		}

		logger.Printf("workerLoop: workerID=%d finished job type=%s id=%s in %s",
			workerID, job.Type, job.ID, time.Since(start).Round(time.Millisecond))
	}
}

// runHandler turns a handler panic into an error so one bad job does not
// take the worker down.
func runHandler(ctx context.Context, handler HandlerFunc, job queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}
