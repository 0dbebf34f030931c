// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"testing"

	"github.com/paper-reader/internal/processor"
)

func TestEventLogger_PaperHistory(t *testing.T) {
	db := openTestDB(t)
	papers, err := NewPaperStore(db)
	if err != nil {
		t.Fatalf("NewPaperStore failed: %v", err)
	}
	events, err := NewEventLogger(db)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	ctx := context.Background()
	id := createPaper(t, papers, "e", "e", "")

	for _, ev := range []string{EventUploaded, EventProcessing, EventCompleted} {
		if err := events.LogEvent(ctx, id, ev, ""); err != nil {
			t.Fatalf("LogEvent failed: %v", err)
		}
	}

	history, err := events.GetEventsByPaper(ctx, id)
	if err != nil {
		t.Fatalf("GetEventsByPaper failed: %v", err)
	}
	if len(history) != 3 || history[0].EventType != EventUploaded || history[2].EventType != EventCompleted {
		t.Errorf("Unexpected history: %+v", history)
	}

	recent, _ := events.GetRecentEvents(ctx, 1)
	if len(recent) != 1 || recent[0].EventType != EventCompleted {
		t.Errorf("Unexpected recent events: %+v", recent)
	}

	if _, err := papers.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if history, _ := events.GetEventsByPaper(ctx, id); len(history) != 0 {
		t.Errorf("Expected events removed with the paper, got %d", len(history))
	}
}

func TestSystemMetadata_SyncChunkerVersion(t *testing.T) {
	papers, chunks, _ := newTestStores(t)
	meta, err := NewSystemMetadataStore(chunks.db)
	if err != nil {
		t.Fatalf("NewSystemMetadataStore failed: %v", err)
	}
	ctx := context.Background()

	id := createPaper(t, papers, "k", "k", "")
	if err := chunks.Replace(ctx, id, []processor.Chunk{{PageStart: 1, PageEnd: 1, Content: "x"}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	// first run only records the version
	if err := meta.SyncChunkerVersion(ctx, "v1", chunks); err != nil {
		t.Fatalf("SyncChunkerVersion failed: %v", err)
	}
	if got, _ := chunks.ListByPaper(ctx, id); len(got) != 1 {
		t.Fatalf("Expected chunks kept on first run, got %d", len(got))
	}

	if err := meta.SyncChunkerVersion(ctx, "v2", chunks); err != nil {
		t.Fatalf("SyncChunkerVersion failed: %v", err)
	}
	if got, _ := chunks.ListByPaper(ctx, id); len(got) != 0 {
		t.Errorf("Expected chunks dropped on version change, got %d", len(got))
	}
	if v, _ := meta.Get(ctx, chunkerVersionKey); v != "v2" {
		t.Errorf("Expected stored version v2, got %q", v)
	}
}
