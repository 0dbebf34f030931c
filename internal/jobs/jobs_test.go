// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/pipeline"
	"github.com/paper-reader/internal/queue"
)

type recordingRunner struct {
	mu   sync.Mutex
	ids  []int64
	kind pipeline.ErrorKind
}

func (r *recordingRunner) Run(_ context.Context, paperID int64) pipeline.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, paperID)
	if r.kind == pipeline.KindNotFound {
		return pipeline.Result{PaperID: paperID, Err: fmt.Errorf("paper %d: %w", paperID, database.ErrNotFound), Kind: r.kind}
	}
	if r.kind != "" && r.kind != pipeline.KindNone {
		return pipeline.Result{PaperID: paperID, Err: errors.New("failed"), Kind: r.kind}
	}
	return pipeline.Result{PaperID: paperID, Kind: pipeline.KindNone}
}

func TestProcessPaperJob_RoundTrip(t *testing.T) {
	job, err := NewProcessPaperJob(ProcessPaperPayload{PaperID: 42, Reason: "upload"})
	if err != nil {
		t.Fatalf("NewProcessPaperJob failed: %v", err)
	}
	if job.Type != JobTypeProcessPaper || job.ID == "" {
		t.Errorf("Unexpected job: %+v", job)
	}

	payload, err := DecodeProcessPaper(job)
	if err != nil {
		t.Fatalf("DecodeProcessPaper failed: %v", err)
	}
	if payload.PaperID != 42 || payload.Reason != "upload" || payload.RequestedAt.IsZero() {
		t.Errorf("Unexpected payload: %+v", payload)
	}
}

func TestDecodeProcessPaper_Rejects(t *testing.T) {
	cases := map[string]queue.Job{
		"wrong type":  {Type: "other", Payload: []byte(`{"paperId":1}`)},
		"bad json":    {Type: JobTypeProcessPaper, Payload: []byte(`{`)},
		"missing id":  {Type: JobTypeProcessPaper, Payload: []byte(`{}`)},
		"negative id": {Type: JobTypeProcessPaper, Payload: []byte(`{"paperId":-3}`)},
	}
	for name, job := range cases {
		if _, err := DecodeProcessPaper(job); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestHandleProcessPaper(t *testing.T) {
	ctx := context.Background()
	job, _ := NewProcessPaperJob(ProcessPaperPayload{PaperID: 3})

	failing := &recordingRunner{kind: pipeline.KindIncompleteSummary}
	if err := HandleProcessPaper(ctx, failing, job); err != nil {
		t.Errorf("A failed run is persisted, expected nil error, got %v", err)
	}

	missing := &recordingRunner{kind: pipeline.KindNotFound}
	if err := HandleProcessPaper(ctx, missing, job); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

type ctxRunner struct {
	err error
}

func (r *ctxRunner) Run(ctx context.Context, paperID int64) pipeline.Result {
	r.err = ctx.Err()
	return pipeline.Result{PaperID: paperID}
}

func TestHandleProcessPaper_IgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job, _ := NewProcessPaperJob(ProcessPaperPayload{PaperID: 5})

	runner := &ctxRunner{}
	if err := HandleProcessPaper(ctx, runner, job); err != nil {
		t.Fatalf("HandleProcessPaper failed: %v", err)
	}
	if runner.err != nil {
		t.Errorf("Expected the run to see a live context, got %v", runner.err)
	}
}

func TestScheduler_SubmitAndHandle(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(4)
	s := NewScheduler(q)

	if err := s.Submit(ctx, 9, "upload"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !s.Pending(9) {
		t.Error("Expected paper 9 to be pending")
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	runner := &recordingRunner{}
	if err := s.Handler(runner)(ctx, job); err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if s.Pending(9) {
		t.Error("Expected paper 9 to leave pending once started")
	}
	if len(runner.ids) != 1 || runner.ids[0] != 9 {
		t.Errorf("Expected a run for paper 9, got %v", runner.ids)
	}
}

func TestScheduler_SubmitFailureClearsPending(t *testing.T) {
	q := queue.NewMemoryQueue(1)
	s := NewScheduler(q)
	if err := s.Submit(context.Background(), 1, "upload"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Submit(ctx, 2, "upload"); err == nil {
		t.Fatal("Expected submit on a full queue with a cancelled context to fail")
	}
	if s.Pending(2) {
		t.Error("A failed submit must not stay pending")
	}
}

type staleList struct {
	ids    []int64
	cutoff time.Time
}

func (s *staleList) ListStaleQueued(_ context.Context, cutoff time.Time) ([]int64, error) {
	s.cutoff = cutoff
	return s.ids, nil
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(10)
	s := NewScheduler(q)
	if err := s.Submit(ctx, 2, "upload"); err != nil {
		t.Fatal(err)
	}

	lister := &staleList{ids: []int64{1, 2, 3}}
	sw := NewSweeper(lister, s, 10*time.Minute)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sw.now = func() time.Time { return fixed }

	n, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 resubmissions (paper 2 already pending), got %d", n)
	}
	if !lister.cutoff.Equal(fixed.Add(-10 * time.Minute)) {
		t.Errorf("Unexpected cutoff %s", lister.cutoff)
	}
	if q.Len() != 3 {
		t.Errorf("Expected 3 queued jobs, got %d", q.Len())
	}
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	sw := NewSweeper(&staleList{}, NewScheduler(queue.NewMemoryQueue(1)), time.Minute)
	if err := sw.Start(context.Background(), "not a schedule"); err == nil {
		sw.Stop()
		t.Fatal("Expected an error for an invalid schedule")
	}
}
