// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/paper-reader/internal/processor"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "papers.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStores(t *testing.T) (*PaperStore, *ChunkStore, *MessageStore) {
	t.Helper()
	db := openTestDB(t)
	papers, err := NewPaperStore(db)
	if err != nil {
		t.Fatalf("NewPaperStore failed: %v", err)
	}
	chunks, err := NewChunkStore(db)
	if err != nil {
		t.Fatalf("NewChunkStore failed: %v", err)
	}
	messages, err := NewMessageStore(db)
	if err != nil {
		t.Fatalf("NewMessageStore failed: %v", err)
	}
	return papers, chunks, messages
}

func createPaper(t *testing.T, s *PaperStore, title, canonical, fingerprint string) int64 {
	t.Helper()
	id, err := s.Create(context.Background(), &Paper{
		Title:              title,
		CanonicalTitle:     canonical,
		ContentFingerprint: fingerprint,
		Filename:           title + ".pdf",
		StorageKey:         "uploads/" + title + ".pdf",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return id
}

func complete(t *testing.T, s *PaperStore, id int64, canonical, fingerprint string) int {
	t.Helper()
	version, _, err := s.CompleteProcessing(context.Background(), id, ProcessingOutcome{
		FullText:           "[Page 1]\nbody",
		CanonicalTitle:     canonical,
		ContentFingerprint: fingerprint,
		SummaryJSON:        `{"en":{}}`,
		Chunks:             []processor.Chunk{{PageStart: 1, PageEnd: 1, Content: "body"}},
	})
	if err != nil {
		t.Fatalf("CompleteProcessing failed: %v", err)
	}
	return version
}

func TestPaperStore_CreateAndGet(t *testing.T) {
	papers, _, _ := newTestStores(t)
	ctx := context.Background()

	id := createPaper(t, papers, "attention", "attention", "fp1")
	p, err := papers.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Status != StatusQueued {
		t.Errorf("Expected queued, got %s", p.Status)
	}
	if p.SummaryVersion != 0 || p.SummaryUpdatedAt != nil {
		t.Errorf("Expected no summary yet, got version %d at %v", p.SummaryVersion, p.SummaryUpdatedAt)
	}

	if _, err := papers.Get(ctx, id+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPaperStore_ListNewestFirst(t *testing.T) {
	papers, _, _ := newTestStores(t)
	first := createPaper(t, papers, "one", "one", "")
	second := createPaper(t, papers, "two", "two", "")

	list, err := papers.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second || list[1].ID != first {
		t.Errorf("Unexpected order: %+v", list)
	}
}

func TestPaperStore_FindDuplicate_Priority(t *testing.T) {
	papers, _, _ := newTestStores(t)
	ctx := context.Background()

	byTitle := createPaper(t, papers, "a", "shared title", "fp-a")
	complete(t, papers, byTitle, "shared title", "fp-a")
	byPrint := createPaper(t, papers, "b", "other title", "fp-b")
	complete(t, papers, byPrint, "other title", "fp-b")

	// same fingerprint as b, same canonical title as a: fingerprint wins
	dup, err := papers.FindDuplicate(ctx, "fp-b", "shared title")
	if err != nil {
		t.Fatalf("FindDuplicate failed: %v", err)
	}
	if dup == nil || dup.ID != byPrint {
		t.Errorf("Expected fingerprint match %d, got %+v", byPrint, dup)
	}

	// unknown fingerprint: canonical title is used
	dup, err = papers.FindDuplicate(ctx, "fp-new", "shared title")
	if err != nil {
		t.Fatalf("FindDuplicate failed: %v", err)
	}
	if dup == nil || dup.ID != byTitle {
		t.Errorf("Expected title match %d, got %+v", byTitle, dup)
	}

	// empty fingerprint skips straight to title
	dup, _ = papers.FindDuplicate(ctx, "", "other title")
	if dup == nil || dup.ID != byPrint {
		t.Errorf("Expected title match %d, got %+v", byPrint, dup)
	}
}

func TestPaperStore_FindDuplicate_OnlyCompleted(t *testing.T) {
	papers, _, _ := newTestStores(t)
	ctx := context.Background()

	queued := createPaper(t, papers, "q", "title q", "fp-q")
	failed := createPaper(t, papers, "f", "title f", "fp-f")
	if err := papers.FailProcessing(ctx, failed, "boom"); err != nil {
		t.Fatalf("FailProcessing failed: %v", err)
	}

	for _, key := range []struct{ fp, title string }{{"fp-q", "title q"}, {"fp-f", "title f"}} {
		dup, err := papers.FindDuplicate(ctx, key.fp, key.title)
		if err != nil {
			t.Fatalf("FindDuplicate failed: %v", err)
		}
		if dup != nil {
			t.Errorf("Expected no match for non-completed paper, got %d", dup.ID)
		}
	}
	_ = queued
}

func TestPaperStore_FindDuplicate_MostRecent(t *testing.T) {
	papers, _, _ := newTestStores(t)
	older := createPaper(t, papers, "x1", "x", "fp-x")
	complete(t, papers, older, "x", "fp-x")
	newer := createPaper(t, papers, "x2", "x", "fp-x")
	complete(t, papers, newer, "x", "fp-x")

	dup, err := papers.FindDuplicate(context.Background(), "fp-x", "x")
	if err != nil {
		t.Fatalf("FindDuplicate failed: %v", err)
	}
	if dup == nil || dup.ID != newer {
		t.Errorf("Expected newest match %d, got %+v", newer, dup)
	}
}

func TestPaperStore_VersionMonotonicity(t *testing.T) {
	papers, _, _ := newTestStores(t)
	ctx := context.Background()
	id := createPaper(t, papers, "v", "v", "fp-v")

	if v := complete(t, papers, id, "v", "fp-v"); v != 1 {
		t.Fatalf("Expected version 1 after first summary, got %d", v)
	}

	// a failed run leaves the counter alone
	if err := papers.FailProcessing(ctx, id, "model down"); err != nil {
		t.Fatalf("FailProcessing failed: %v", err)
	}
	p, _ := papers.Get(ctx, id)
	if p.SummaryVersion != 1 || p.Status != StatusFailed {
		t.Errorf("Expected failed at version 1, got %s at %d", p.Status, p.SummaryVersion)
	}
	if p.SummaryJSON != `{"error":"model down"}` {
		t.Errorf("Unexpected diagnostic payload: %s", p.SummaryJSON)
	}

	if v := complete(t, papers, id, "v", "fp-v"); v != 2 {
		t.Errorf("Expected version 2, got %d", v)
	}
	v, at, err := papers.ApplySummary(ctx, id, `{"zh":{}}`)
	if err != nil {
		t.Fatalf("ApplySummary failed: %v", err)
	}
	if v != 3 {
		t.Errorf("Expected version 3 after merge, got %d", v)
	}

	p, _ = papers.Get(ctx, id)
	if p.SummaryVersion != 3 || p.SummaryUpdatedAt == nil || !p.SummaryUpdatedAt.Equal(at) {
		t.Errorf("Unexpected persisted state: version %d at %v", p.SummaryVersion, p.SummaryUpdatedAt)
	}

	if _, _, err := papers.ApplySummary(ctx, id+50, "{}"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown paper, got %v", err)
	}
}

func TestPaperStore_DeleteCascade(t *testing.T) {
	papers, chunks, messages := newTestStores(t)
	ctx := context.Background()

	id := createPaper(t, papers, "d", "d", "fp-d")
	complete(t, papers, id, "d", "fp-d")
	if _, err := messages.Append(ctx, id, RoleUser, "hi", nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	key, err := papers.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if key != "uploads/d.pdf" {
		t.Errorf("Unexpected storage key %q", key)
	}

	if got, _ := chunks.ListByPaper(ctx, id); len(got) != 0 {
		t.Errorf("Expected chunks removed, got %d", len(got))
	}
	if got, _ := messages.ListByPaper(ctx, id); len(got) != 0 {
		t.Errorf("Expected messages removed, got %d", len(got))
	}
	if _, err := papers.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPaperStore_ListStaleQueued(t *testing.T) {
	papers, _, _ := newTestStores(t)
	ctx := context.Background()

	id := createPaper(t, papers, "s", "s", "")
	done := createPaper(t, papers, "c", "c", "")
	complete(t, papers, done, "c", "")

	p, _ := papers.Get(ctx, id)
	ids, err := papers.ListStaleQueued(ctx, p.UpdatedAt.Add(1e9))
	if err != nil {
		t.Fatalf("ListStaleQueued failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("Expected [%d], got %v", id, ids)
	}
}

func TestPaperStore_RequeueInterrupted(t *testing.T) {
	papers, _, _ := newTestStores(t)
	ctx := context.Background()

	queued := createPaper(t, papers, "q", "q", "")
	running := createPaper(t, papers, "p", "p", "")
	done := createPaper(t, papers, "c", "c", "")
	complete(t, papers, done, "c", "")
	if err := papers.SetStatus(ctx, running, StatusProcessing); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	ids, err := papers.RequeueInterrupted(ctx)
	if err != nil {
		t.Fatalf("RequeueInterrupted failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != running {
		t.Errorf("Expected [%d], got %v", running, ids)
	}

	want := map[int64]Status{queued: StatusQueued, running: StatusQueued, done: StatusCompleted}
	for id, status := range want {
		p, _ := papers.Get(ctx, id)
		if p.Status != status {
			t.Errorf("paper %d: expected %s, got %s", id, status, p.Status)
		}
	}

	if ids, _ := papers.RequeueInterrupted(ctx); len(ids) != 0 {
		t.Errorf("Expected nothing left to requeue, got %v", ids)
	}
}

func TestInitCoreSchema_MigratesLegacyTable(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL,
		status TEXT NOT NULL,
		summary_json TEXT,
		full_text TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	if err != nil {
		t.Fatalf("legacy schema: %v", err)
	}

	if _, err := NewPaperStore(db); err != nil {
		t.Fatalf("NewPaperStore on legacy schema failed: %v", err)
	}
	cols, err := tableColumns(db, "papers")
	if err != nil {
		t.Fatalf("tableColumns failed: %v", err)
	}
	for _, c := range []string{"summary_version", "summary_updated_at", "canonical_title", "content_fingerprint"} {
		if !cols[c] {
			t.Errorf("Expected column %s after migration", c)
		}
	}
}
