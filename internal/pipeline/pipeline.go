// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/events"
	"github.com/paper-reader/internal/fingerprint"
	"github.com/paper-reader/internal/logger"
	"github.com/paper-reader/internal/metrics"
	"github.com/paper-reader/internal/pdf"
	"github.com/paper-reader/internal/processor"
	"github.com/paper-reader/internal/summary"
)

// PaperRepository is the paper storage the pipeline drives.
type PaperRepository interface {
	Get(ctx context.Context, id int64) (*database.Paper, error)
	SetStatus(ctx context.Context, id int64, status database.Status) error
	CompleteProcessing(ctx context.Context, id int64, out database.ProcessingOutcome) (int, time.Time, error)
	FailProcessing(ctx context.Context, id int64, message string) error
}

// FileReader returns the stored PDF bytes.
type FileReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Extractor turns PDF bytes into pages.
type Extractor interface {
	ExtractPages(data []byte) ([]pdf.Page, error)
}

// Summarizer produces a complete summary.
type Summarizer interface {
	Summarize(ctx context.Context, title, fullText string) (summary.Summary, error)
}

// EventRecorder writes a paper's processing history.
type EventRecorder interface {
	LogEvent(ctx context.Context, paperID int64, eventType, details string) error
}

// Pipeline runs extraction, chunking and summarization for one paper and owns
// its processing status.
type Pipeline struct {
	papers      PaperRepository
	files       FileReader
	extractor   Extractor
	chunker     *processor.Chunker
	summarizer  Summarizer
	history     EventRecorder
	broadcaster *events.Broadcaster
}

// New creates a pipeline. history and broadcaster may be nil.
func New(papers PaperRepository, files FileReader, extractor Extractor, chunker *processor.Chunker,
	summarizer Summarizer, history EventRecorder, broadcaster *events.Broadcaster) *Pipeline {
	return &Pipeline{
		papers:      papers,
		files:       files,
		extractor:   extractor,
		chunker:     chunker,
		summarizer:  summarizer,
		history:     history,
		broadcaster: broadcaster,
	}
}

// Run processes one paper synchronously: queued -> processing -> completed or
// failed. Failures never escape as errors; they are persisted on the paper
// and reported in the Result.
func (p *Pipeline) Run(ctx context.Context, paperID int64) (res Result) {
	paper, err := p.papers.Get(ctx, paperID)
	if err != nil {
		logger.Warnf("[PIPELINE] paper %d: not processed: %v", paperID, err)
		return failed(paperID, err)
	}

	if err := p.papers.SetStatus(ctx, paperID, database.StatusProcessing); err != nil {
		logger.Errorf("[PIPELINE] paper %d: failed to mark processing: %v", paperID, err)
		return failed(paperID, err)
	}
	p.record(ctx, paperID, database.EventProcessing, "")
	p.announce(paperID, database.StatusProcessing, 0, "")
	logger.Printf("[PIPELINE] paper %d: processing %q", paperID, paper.Title)

	defer func() {
		if r := recover(); r != nil {
			res = p.finish(ctx, paperID, failed(paperID, fmt.Errorf("panic during processing: %v", r)))
		}
	}()

	start := time.Now()
	res = p.execute(ctx, paper)
	res = p.finish(ctx, paperID, res)
	logger.Printf("[PIPELINE] paper %d: %s in %s", paperID, Transition(res), time.Since(start).Round(time.Millisecond))
	return res
}

// execute runs every stage and persists a success. Nothing is written for
// the paper until all stages have succeeded.
func (p *Pipeline) execute(ctx context.Context, paper *database.Paper) Result {
	data, err := p.files.Read(ctx, paper.StorageKey)
	if err != nil {
		return failed(paper.ID, fmt.Errorf("%w: %v", pdf.ErrExtraction, err))
	}

	pages, err := p.extractor.ExtractPages(data)
	if err != nil {
		return failed(paper.ID, err)
	}

	fullText := pdf.BuildFullText(pages)
	canonical := fingerprint.NormalizeTitle(fingerprint.InferTitle(paper.Title, pages))
	fp := fingerprint.Compute(fullText)
	chunks := p.chunker.BuildChunks(pages)
	logger.Debugf("[PIPELINE] paper %d: %d pages, %d chunks", paper.ID, len(pages), len(chunks))

	s, err := p.summarizer.Summarize(ctx, paper.Title, fullText)
	if err != nil {
		return failed(paper.ID, err)
	}

	// the outcome is written even if ctx was cancelled after the summary arrived
	version, _, err := p.papers.CompleteProcessing(context.WithoutCancel(ctx), paper.ID, database.ProcessingOutcome{
		FullText:           fullText,
		CanonicalTitle:     canonical,
		ContentFingerprint: fp,
		SummaryJSON:        s.JSON(),
		Chunks:             chunks,
	})
	if err != nil {
		return failed(paper.ID, err)
	}
	return ok(paper.ID, s, version)
}

// finish applies the status Transition picks for res. A cancelled ctx does
// not stop the outcome from being persisted.
func (p *Pipeline) finish(ctx context.Context, paperID int64, res Result) Result {
	ctx = context.WithoutCancel(ctx)
	status := Transition(res)
	metrics.PipelineRunsTotal.WithLabelValues(string(status), string(res.Kind)).Inc()

	if status == database.StatusCompleted {
		p.record(ctx, paperID, database.EventCompleted, fmt.Sprintf("summary_version=%d", res.Version))
		p.announce(paperID, status, res.Version, "")
		return res
	}

	msg := res.Err.Error()
	logger.Errorf("[PIPELINE] paper %d: failed (%s): %s", paperID, res.Kind, msg)
	if err := p.papers.FailProcessing(ctx, paperID, msg); err != nil {
		logger.Errorf("[PIPELINE] paper %d: failed to persist failure: %v", paperID, err)
		res.Err = errors.Join(res.Err, err)
	}
	p.record(ctx, paperID, database.EventFailed, msg)
	p.announce(paperID, status, 0, msg)
	return res
}

func (p *Pipeline) record(ctx context.Context, paperID int64, eventType, details string) {
	if p.history == nil {
		return
	}
	if err := p.history.LogEvent(ctx, paperID, eventType, details); err != nil {
		logger.Warnf("[PIPELINE] paper %d: failed to log %s event: %v", paperID, eventType, err)
	}
}

func (p *Pipeline) announce(paperID int64, status database.Status, version int, errMsg string) {
	if p.broadcaster != nil {
		p.broadcaster.PaperStatus(paperID, string(status), version, errMsg)
	}
}
