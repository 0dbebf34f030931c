// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paper-reader/internal/logger"
)

const chunkerVersionKey = "chunker_version"

// SystemMetadataStore keeps process-wide key/value settings
type SystemMetadataStore struct {
	db *sql.DB
}

// NewSystemMetadataStore creates a new system metadata store
func NewSystemMetadataStore(db *sql.DB) (*SystemMetadataStore, error) {
	store := &SystemMetadataStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize system_metadata schema: %w", err)
	}
	return store, nil
}

func (s *SystemMetadataStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS system_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get retrieves a metadata value by key. Missing keys return "".
func (s *SystemMetadataStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM system_metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}
	return value, nil
}

// Set sets a metadata value by key
func (s *SystemMetadataStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO system_metadata (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// SyncChunkerVersion drops every persisted chunk when the stored chunker
// version differs from version, then records version. Retrieval rebuilds the
// dropped sets from full text on first use.
func (s *SystemMetadataStore) SyncChunkerVersion(ctx context.Context, version string, chunks *ChunkStore) error {
	existing, err := s.Get(ctx, chunkerVersionKey)
	if err != nil {
		return err
	}
	if existing == version {
		return nil
	}

	if existing != "" {
		n, err := chunks.DeleteAll(ctx)
		if err != nil {
			return err
		}
		logger.Printf("[MIGRATION] Chunker version %s -> %s, dropped %d chunks", existing, version, n)
	}
	if err := s.Set(ctx, chunkerVersionKey, version); err != nil {
		return fmt.Errorf("failed to set %s: %w", chunkerVersionKey, err)
	}
	return nil
}
