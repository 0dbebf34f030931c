// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paper-reader/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a paper id does not exist.
var ErrNotFound = errors.New("not found")

// dsnOptions: writers take the lock at BEGIN so a chunk replace and a lazy
// materialization for the same paper never interleave.
const dsnOptions = "_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate"

// Open opens (and creates if needed) the SQLite database at path.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, dsnOptions))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// initCoreSchema creates the tables a paper owns. Every store constructor runs
// it; all statements are idempotent.
func initCoreSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		canonical_title TEXT,
		content_fingerprint TEXT,
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL,
		status TEXT NOT NULL,
		summary_json TEXT,
		full_text TEXT,
		summary_version INTEGER NOT NULL DEFAULT 0,
		summary_updated_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		paper_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		source_hint TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (paper_id) REFERENCES papers (id)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		paper_id INTEGER NOT NULL,
		page_start INTEGER NOT NULL,
		page_end INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (paper_id) REFERENCES papers (id)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create core tables: %w", err)
	}

	// Databases created before dedup and versioning lack these columns.
	migrations := []struct{ column, ddl string }{
		{"summary_version", "summary_version INTEGER NOT NULL DEFAULT 0"},
		{"summary_updated_at", "summary_updated_at DATETIME"},
		{"canonical_title", "canonical_title TEXT"},
		{"content_fingerprint", "content_fingerprint TEXT"},
	}
	columns, err := tableColumns(db, "papers")
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if columns[m.column] {
			continue
		}
		logger.Printf("[MIGRATION] Adding %s column to papers table", m.column)
		if _, err := db.Exec("ALTER TABLE papers ADD COLUMN " + m.ddl); err != nil {
			return fmt.Errorf("failed to add column %s: %w", m.column, err)
		}
	}

	const indexes = `
	CREATE INDEX IF NOT EXISTS idx_papers_fingerprint ON papers(content_fingerprint);
	CREATE INDEX IF NOT EXISTS idx_papers_canonical_title ON papers(canonical_title);
	CREATE INDEX IF NOT EXISTS idx_chunks_paper ON chunks(paper_id);
	CREATE INDEX IF NOT EXISTS idx_messages_paper ON messages(paper_id);
	`
	if _, err := db.Exec(indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to query table info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var defaultValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
