// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paper-reader/internal/logger"
	"github.com/paper-reader/internal/pipeline"
	"github.com/paper-reader/internal/queue"
)

// ProcessPaperPayload represents the payload for a process paper job.
type ProcessPaperPayload struct {
	PaperID     int64     `json:"paperId"`
	Reason      string    `json:"reason"` // upload, refresh, sweep, inbox
	RequestedAt time.Time `json:"requestedAt"`
}

const JobTypeProcessPaper = "process_paper"

// Runner runs the processing pipeline for one paper.
type Runner interface {
	Run(ctx context.Context, paperID int64) pipeline.Result
}

// NewProcessPaperJob creates a new job for processing a paper.
func NewProcessPaperJob(payload ProcessPaperPayload) (queue.Job, error) {
	if payload.RequestedAt.IsZero() {
		payload.RequestedAt = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("NewProcessPaperJob: failed to marshal payload: %v", err)
		return queue.Job{}, err
	}

	job := queue.Job{
		ID:        uuid.NewString(),
		Type:      JobTypeProcessPaper,
		Payload:   payloadJSON,
		CreatedAt: time.Now().UTC(),
	}

	logger.Debugf("NewProcessPaperJob: paperId=%d reason=%s id=%s", payload.PaperID, payload.Reason, job.ID)
	return job, nil
}

// EnqueueProcessPaper enqueues a process paper job.
func EnqueueProcessPaper(ctx context.Context, q queue.Queue, payload ProcessPaperPayload) error {
	job, err := NewProcessPaperJob(payload)
	if err != nil {
		return err
	}

	if err := q.Enqueue(ctx, job); err != nil {
		logger.Errorf("EnqueueProcessPaper: failed to enqueue paperId=%d: %v", payload.PaperID, err)
		return err
	}

	logger.Printf("EnqueueProcessPaper: enqueued paperId=%d reason=%s", payload.PaperID, payload.Reason)
	return nil
}

// DecodeProcessPaper extracts the payload of a process paper job.
func DecodeProcessPaper(job queue.Job) (ProcessPaperPayload, error) {
	var payload ProcessPaperPayload
	if job.Type != JobTypeProcessPaper {
		return payload, fmt.Errorf("unexpected job type %s, expected %s", job.Type, JobTypeProcessPaper)
	}
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.PaperID <= 0 {
		return payload, fmt.Errorf("invalid paper id %d", payload.PaperID)
	}
	return payload, nil
}

// HandleProcessPaper runs the pipeline for the job's paper to completion,
// ignoring cancellation of ctx. A failed run is not a handler error: the
// failure is already persisted on the paper. Only malformed jobs and unknown
// papers are reported.
func HandleProcessPaper(ctx context.Context, runner Runner, job queue.Job) error {
	payload, err := DecodeProcessPaper(job)
	if err != nil {
		logger.Errorf("HandleProcessPaper: %v", err)
		return err
	}

	logger.Printf("HandleProcessPaper: paperId=%d reason=%s queuedFor=%s",
		payload.PaperID, payload.Reason, time.Since(payload.RequestedAt).Round(time.Millisecond))

	// a started run is not cut short when the workers are told to stop
	res := runner.Run(context.WithoutCancel(ctx), payload.PaperID)
	if res.Kind == pipeline.KindNotFound {
		return res.Err
	}
	return nil
}
