// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package retrieval

import (
	"context"
	"time"

	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/logger"
	"github.com/paper-reader/internal/metrics"
	"github.com/paper-reader/internal/pdf"
	"github.com/paper-reader/internal/processor"
)

// DefaultLimit is the number of chunks handed to a chat prompt.
const DefaultLimit = 6

// ChunkSource loads a paper's chunks, rebuilding them from full text when the
// persisted set is empty.
type ChunkSource interface {
	EnsureChunks(ctx context.Context, paperID int64, build database.ChunkBuilder) ([]database.Chunk, bool, error)
}

// EventRecorder is notified when chunks are rebuilt.
type EventRecorder interface {
	LogEvent(ctx context.Context, paperID int64, eventType, details string) error
}

// Retriever ranks a paper's persisted chunks against a query
type Retriever struct {
	chunks  ChunkSource
	chunker *processor.Chunker
	events  EventRecorder
}

// NewRetriever creates a retriever. events may be nil.
func NewRetriever(chunks ChunkSource, chunker *processor.Chunker, events EventRecorder) *Retriever {
	return &Retriever{chunks: chunks, chunker: chunker, events: events}
}

// Retrieve returns up to limit chunks for query. It never fails: storage
// errors are logged and yield an empty result.
func (r *Retriever) Retrieve(ctx context.Context, paperID int64, query string, limit int) []database.Chunk {
	start := time.Now()
	defer metrics.ObserveSince(metrics.RetrievalSeconds, start)

	chunks, materialized, err := r.chunks.EnsureChunks(ctx, paperID, r.rebuild)
	if err != nil {
		logger.Errorf("[RETRIEVE] paper %d: failed to load chunks: %v", paperID, err)
		return nil
	}
	if materialized {
		metrics.ChunksMaterializedTotal.Add(float64(len(chunks)))
		logger.Printf("[RETRIEVE] paper %d: rebuilt %d chunks from full text", paperID, len(chunks))
		if r.events != nil {
			if err := r.events.LogEvent(ctx, paperID, database.EventChunked, processor.Version); err != nil {
				logger.Warnf("[RETRIEVE] paper %d: failed to log event: %v", paperID, err)
			}
		}
	}

	ranked := Rank(query, chunks, limit)
	logger.Debugf("[RETRIEVE] paper %d: %d of %d chunks selected", paperID, len(ranked), len(chunks))
	return ranked
}

func (r *Retriever) rebuild(fullText string) []processor.Chunk {
	return r.chunker.BuildChunks(pdf.ParseFullText(fullText))
}
