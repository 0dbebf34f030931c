// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"testing"

	"github.com/paper-reader/internal/processor"
)

func TestChunkStore_ReplaceIsWholesale(t *testing.T) {
	papers, chunks, _ := newTestStores(t)
	ctx := context.Background()
	id := createPaper(t, papers, "r", "r", "")

	first := []processor.Chunk{
		{PageStart: 2, PageEnd: 2, Content: "b"},
		{PageStart: 1, PageEnd: 1, Content: "a"},
	}
	if err := chunks.Replace(ctx, id, first); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got, _ := chunks.ListByPaper(ctx, id)
	if len(got) != 2 || got[0].Content != "a" || got[1].Content != "b" {
		t.Fatalf("Expected page-ordered chunks, got %+v", got)
	}

	if err := chunks.Replace(ctx, id, []processor.Chunk{{PageStart: 3, PageEnd: 3, Content: "c"}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got, _ = chunks.ListByPaper(ctx, id)
	if len(got) != 1 || got[0].Content != "c" {
		t.Errorf("Expected only the new set, got %+v", got)
	}
}

func TestChunkStore_EnsureChunks_Materializes(t *testing.T) {
	papers, chunks, _ := newTestStores(t)
	ctx := context.Background()
	id := createPaper(t, papers, "m", "m", "")
	complete(t, papers, id, "m", "")

	// simulate a chunk-version reset
	if _, err := chunks.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	calls := 0
	build := func(fullText string) []processor.Chunk {
		calls++
		if fullText != "[Page 1]\nbody" {
			t.Errorf("Unexpected full text %q", fullText)
		}
		return []processor.Chunk{{PageStart: 1, PageEnd: 1, Content: "rebuilt"}}
	}

	got, materialized, err := chunks.EnsureChunks(ctx, id, build)
	if err != nil {
		t.Fatalf("EnsureChunks failed: %v", err)
	}
	if !materialized || len(got) != 1 || got[0].Content != "rebuilt" {
		t.Fatalf("Expected materialized chunk, got %v %+v", materialized, got)
	}

	// second call reads the persisted set
	got, materialized, err = chunks.EnsureChunks(ctx, id, build)
	if err != nil {
		t.Fatalf("EnsureChunks failed: %v", err)
	}
	if materialized || calls != 1 || len(got) != 1 {
		t.Errorf("Expected persisted chunks without rebuild, calls=%d", calls)
	}
}

func TestChunkStore_EnsureChunks_NoFullText(t *testing.T) {
	papers, chunks, _ := newTestStores(t)
	id := createPaper(t, papers, "n", "n", "")

	got, materialized, err := chunks.EnsureChunks(context.Background(), id, func(string) []processor.Chunk {
		t.Error("builder must not run without full text")
		return nil
	})
	if err != nil || materialized || len(got) != 0 {
		t.Errorf("Expected empty result, got %v %v %+v", err, materialized, got)
	}

	got, _, err = chunks.EnsureChunks(context.Background(), id+99, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Expected empty result for unknown paper, got %v %+v", err, got)
	}
}

func TestChunkStore_EnsureChunks_EmptyBuildWritesNothing(t *testing.T) {
	papers, chunks, _ := newTestStores(t)
	ctx := context.Background()
	id := createPaper(t, papers, "scan", "scan", "")
	_, _, err := papers.CompleteProcessing(ctx, id, ProcessingOutcome{
		FullText:    "[Page 1]",
		SummaryJSON: `{"en":{}}`,
	})
	if err != nil {
		t.Fatalf("CompleteProcessing failed: %v", err)
	}

	calls := 0
	build := func(fullText string) []processor.Chunk {
		calls++
		if fullText != "[Page 1]" {
			t.Errorf("Unexpected full text %q", fullText)
		}
		return nil
	}

	for i := 0; i < 2; i++ {
		got, materialized, err := chunks.EnsureChunks(ctx, id, build)
		if err != nil || materialized || len(got) != 0 {
			t.Errorf("Expected empty result without materializing, got %v %v %+v", err, materialized, got)
		}
	}
	if calls != 2 {
		t.Errorf("Expected the builder to run on each call, got %d", calls)
	}
	if got, _ := chunks.ListByPaper(ctx, id); len(got) != 0 {
		t.Errorf("Expected no persisted chunks, got %+v", got)
	}
}
