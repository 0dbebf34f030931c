// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paper-reader/internal/processor"
)

// Status is a paper's processing state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Paper is one uploaded document. SummaryJSON holds the raw summary payload,
// or {"error": ...} after a failed run.
type Paper struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	CanonicalTitle     string     `json:"canonical_title"`
	ContentFingerprint string     `json:"content_fingerprint"`
	Filename           string     `json:"filename"`
	StorageKey         string     `json:"-"`
	Status             Status     `json:"status"`
	SummaryJSON        string     `json:"-"`
	FullText           string     `json:"-"`
	SummaryVersion     int        `json:"summary_version"`
	SummaryUpdatedAt   *time.Time `json:"summary_updated_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ProcessingOutcome is everything a successful pipeline run persists.
type ProcessingOutcome struct {
	FullText           string
	CanonicalTitle     string
	ContentFingerprint string
	SummaryJSON        string
	Chunks             []processor.Chunk
}

// PaperStore manages paper rows
type PaperStore struct {
	db *sql.DB
}

// NewPaperStore creates a new paper store
func NewPaperStore(db *sql.DB) (*PaperStore, error) {
	if err := initCoreSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize papers schema: %w", err)
	}
	return &PaperStore{db: db}, nil
}

const paperColumns = `id, title, canonical_title, content_fingerprint, filename, filepath, status,
	summary_json, full_text, summary_version, summary_updated_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(row rowScanner) (*Paper, error) {
	var p Paper
	var canonical, fingerprint, summary, fullText sql.NullString
	var summaryAt sql.NullTime
	var status string
	err := row.Scan(&p.ID, &p.Title, &canonical, &fingerprint, &p.Filename, &p.StorageKey, &status,
		&summary, &fullText, &p.SummaryVersion, &summaryAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	p.CanonicalTitle = canonical.String
	p.ContentFingerprint = fingerprint.String
	p.SummaryJSON = summary.String
	p.FullText = fullText.String
	if summaryAt.Valid {
		t := summaryAt.Time
		p.SummaryUpdatedAt = &t
	}
	return &p, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a new paper in the queued state and returns its id.
func (s *PaperStore) Create(ctx context.Context, p *Paper) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO papers (title, canonical_title, content_fingerprint, filename, filepath, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, nullIfEmpty(p.CanonicalTitle), nullIfEmpty(p.ContentFingerprint),
		p.Filename, p.StorageKey, string(StatusQueued), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert paper: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	p.ID = id
	p.Status = StatusQueued
	p.CreatedAt = now
	p.UpdatedAt = now
	return id, nil
}

// Get returns one paper or ErrNotFound.
func (s *PaperStore) Get(ctx context.Context, id int64) (*Paper, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+paperColumns+" FROM papers WHERE id = ?", id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return p, nil
}

// List returns all papers, newest first.
func (s *PaperStore) List(ctx context.Context) ([]Paper, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+paperColumns+" FROM papers ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}

// FindDuplicate returns the most recent completed paper with the same
// fingerprint, else the most recent completed paper with the same canonical
// title. Empty keys are skipped. Returns nil when nothing matches.
func (s *PaperStore) FindDuplicate(ctx context.Context, fingerprint, canonicalTitle string) (*Paper, error) {
	lookups := []struct{ column, value string }{
		{"content_fingerprint", fingerprint},
		{"canonical_title", canonicalTitle},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		row := s.db.QueryRowContext(ctx,
			"SELECT "+paperColumns+" FROM papers WHERE "+l.column+" = ? AND status = ? ORDER BY id DESC LIMIT 1",
			l.value, string(StatusCompleted),
		)
		p, err := scanPaper(row)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up duplicate by %s: %w", l.column, err)
		}
		return p, nil
	}
	return nil, nil
}

// SetStatus moves a paper to status and stamps updated_at.
func (s *PaperStore) SetStatus(ctx context.Context, id int64, status Status) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE papers SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return expectOne(res, id)
}

// CompleteProcessing replaces the paper's chunks and writes the new summary
// in one transaction. summary_version is incremented by exactly one.
func (s *PaperStore) CompleteProcessing(ctx context.Context, id int64, out ProcessingOutcome) (int, time.Time, error) {
	var version int
	now := time.Now().UTC()
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := replaceChunksTx(ctx, tx, id, out.Chunks); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE papers
			SET status = ?,
				full_text = ?,
				canonical_title = ?,
				content_fingerprint = ?,
				summary_json = ?,
				summary_version = COALESCE(summary_version, 0) + 1,
				summary_updated_at = ?,
				updated_at = ?
			WHERE id = ?`,
			string(StatusCompleted), out.FullText, nullIfEmpty(out.CanonicalTitle), nullIfEmpty(out.ContentFingerprint),
			out.SummaryJSON, now, now, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update paper: %w", err)
		}
		if err := expectOne(res, id); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT summary_version FROM papers WHERE id = ?", id).Scan(&version)
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return version, now, nil
}

// FailProcessing marks the paper failed and stores message as the diagnostic
// summary payload. Chunks and summary_version are left untouched.
func (s *PaperStore) FailProcessing(ctx context.Context, id int64, message string) error {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE papers SET status = ?, updated_at = ?, summary_json = ? WHERE id = ?",
		string(StatusFailed), time.Now().UTC(), string(payload), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark paper failed: %w", err)
	}
	return expectOne(res, id)
}

// ApplySummary stores a merged summary, increments summary_version and returns
// the new version and timestamp.
func (s *PaperStore) ApplySummary(ctx context.Context, id int64, summaryJSON string) (int, time.Time, error) {
	var version int
	now := time.Now().UTC()
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE papers
			SET summary_json = ?,
				summary_version = COALESCE(summary_version, 0) + 1,
				summary_updated_at = ?,
				updated_at = ?
			WHERE id = ?`,
			summaryJSON, now, now, id,
		)
		if err != nil {
			return fmt.Errorf("failed to apply summary: %w", err)
		}
		if err := expectOne(res, id); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT summary_version FROM papers WHERE id = ?", id).Scan(&version)
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return version, now, nil
}

// Delete removes the paper with its messages and chunks and returns the
// storage key of its file.
func (s *PaperStore) Delete(ctx context.Context, id int64) (string, error) {
	var key string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT filepath FROM papers WHERE id = ?", id).Scan(&key)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("paper %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		for _, stmt := range []string{
			"DELETE FROM messages WHERE paper_id = ?",
			"DELETE FROM chunks WHERE paper_id = ?",
			"DELETE FROM papers WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete paper %d: %w", id, err)
			}
		}
		return nil
	})
	return key, err
}

// ListStaleQueued returns ids of papers still queued since before cutoff.
func (s *PaperStore) ListStaleQueued(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM papers WHERE status = ? AND updated_at < ? ORDER BY id ASC",
		string(StatusQueued), cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued papers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RequeueInterrupted moves every paper left in processing back to queued and
// returns their ids. It runs at startup, before any worker, so a run cut off
// by a stop or crash is picked up again.
func (s *PaperStore) RequeueInterrupted(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM papers WHERE status = ? ORDER BY id ASC", string(StatusProcessing))
		if err != nil {
			return fmt.Errorf("failed to list processing papers: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE papers SET status = ?, updated_at = ? WHERE status = ?",
			string(StatusQueued), time.Now().UTC(), string(StatusProcessing),
		)
		if err != nil {
			return fmt.Errorf("failed to requeue processing papers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("paper %d: %w", id, ErrNotFound)
	}
	return nil
}
