// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paper-reader/internal/processor"
)

// Chunk is a persisted retrieval unit.
type Chunk struct {
	ID        int64     `json:"id"`
	PaperID   int64     `json:"paper_id"`
	PageStart int       `json:"page_start"`
	PageEnd   int       `json:"page_end"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkBuilder derives a chunk set from a paper's persisted full text.
type ChunkBuilder func(fullText string) []processor.Chunk

// ChunkStore manages chunk rows
type ChunkStore struct {
	db *sql.DB
}

// NewChunkStore creates a new chunk store
func NewChunkStore(db *sql.DB) (*ChunkStore, error) {
	if err := initCoreSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize chunks schema: %w", err)
	}
	return &ChunkStore{db: db}, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listChunks(ctx context.Context, q queryer, paperID int64) ([]Chunk, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, paper_id, page_start, page_end, content, created_at FROM chunks WHERE paper_id = ? ORDER BY page_start ASC, id ASC",
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.PaperID, &c.PageStart, &c.PageEnd, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListByPaper returns a paper's chunks ordered by (page_start, id).
func (s *ChunkStore) ListByPaper(ctx context.Context, paperID int64) ([]Chunk, error) {
	return listChunks(ctx, s.db, paperID)
}

// Replace deletes every chunk of the paper and inserts chunks, atomically.
func (s *ChunkStore) Replace(ctx context.Context, paperID int64, chunks []processor.Chunk) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return replaceChunksTx(ctx, tx, paperID, chunks)
	})
}

// EnsureChunks returns the paper's chunks. When none are persisted but the
// paper has full text, build derives a new set which is stored first. A build
// that yields no chunks is returned without writing. The store re-checks the
// chunk set and full text inside its write transaction, so a concurrent
// processing run is never overwritten with a stale set.
func (s *ChunkStore) EnsureChunks(ctx context.Context, paperID int64, build ChunkBuilder) ([]Chunk, bool, error) {
	chunks, err := listChunks(ctx, s.db, paperID)
	if err != nil || len(chunks) > 0 {
		return chunks, false, err
	}

	fullText, err := readFullText(ctx, s.db, paperID)
	if err != nil || fullText == "" {
		return nil, false, err
	}
	built := build(fullText)
	if len(built) == 0 {
		return nil, false, nil
	}

	materialized := false
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		chunks, err = listChunks(ctx, tx, paperID)
		if err != nil || len(chunks) > 0 {
			return err
		}

		current, err := readFullText(ctx, tx, paperID)
		if err != nil || current == "" {
			return err
		}
		if current != fullText {
			built = build(current)
			if len(built) == 0 {
				return nil
			}
		}

		if err := replaceChunksTx(ctx, tx, paperID, built); err != nil {
			return err
		}
		materialized = true
		chunks, err = listChunks(ctx, tx, paperID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return chunks, materialized, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// readFullText returns "" for an unknown paper or one without full text.
func readFullText(ctx context.Context, q rowQueryer, paperID int64) (string, error) {
	var fullText sql.NullString
	err := q.QueryRowContext(ctx, "SELECT full_text FROM papers WHERE id = ?", paperID).Scan(&fullText)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read full text: %w", err)
	}
	return fullText.String, nil
}

// DeleteAll drops every persisted chunk and returns how many rows went.
func (s *ChunkStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks")
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return res.RowsAffected()
}

func replaceChunksTx(ctx context.Context, tx *sql.Tx, paperID int64, chunks []processor.Chunk) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE paper_id = ?", paperID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (paper_id, page_start, page_end, content, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, paperID, c.PageStart, c.PageEnd, c.Content, now); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}
