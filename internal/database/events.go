// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Event types written by the pipeline and the request path.
const (
	EventUploaded   = "uploaded"
	EventDuplicate  = "duplicate"
	EventProcessing = "processing"
	EventCompleted  = "completed"
	EventFailed     = "failed"
	EventMerged     = "summary_merged"
	EventRefreshed  = "refresh_requested"
	EventChunked    = "chunks_materialized"
)

// Event is one entry in a paper's processing history
type Event struct {
	ID        int64     `json:"id"`
	PaperID   int64     `json:"paper_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Details   string    `json:"details"`
}

// EventLogger handles event logging to SQLite
type EventLogger struct {
	db *sql.DB
}

// NewEventLogger creates a new event logger
func NewEventLogger(db *sql.DB) (*EventLogger, error) {
	if err := initCoreSchema(db); err != nil {
		return nil, err
	}
	logger := &EventLogger{db: db}
	if err := logger.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize events schema: %w", err)
	}
	return logger, nil
}

func (e *EventLogger) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS paper_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		paper_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		event_type TEXT NOT NULL,
		details TEXT,
		FOREIGN KEY (paper_id) REFERENCES papers (id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_paper_events_paper ON paper_events(paper_id, id);
	`
	_, err := e.db.Exec(schema)
	return err
}

// LogEvent logs a new event
func (e *EventLogger) LogEvent(ctx context.Context, paperID int64, eventType, details string) error {
	_, err := e.db.ExecContext(ctx,
		"INSERT INTO paper_events (paper_id, timestamp, event_type, details) VALUES (?, ?, ?, ?)",
		paperID, time.Now().UTC(), eventType, details,
	)
	return err
}

// GetRecentEvents returns the last N events across all papers, newest first
func (e *EventLogger) GetRecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return e.query(ctx,
		"SELECT id, paper_id, timestamp, event_type, details FROM paper_events ORDER BY id DESC LIMIT ?",
		limit,
	)
}

// GetEventsByPaper returns a paper's history in the order it happened
func (e *EventLogger) GetEventsByPaper(ctx context.Context, paperID int64) ([]Event, error) {
	return e.query(ctx,
		"SELECT id, paper_id, timestamp, event_type, details FROM paper_events WHERE paper_id = ? ORDER BY id ASC",
		paperID,
	)
}

func (e *EventLogger) query(ctx context.Context, q string, args ...interface{}) ([]Event, error) {
	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		var details sql.NullString
		if err := rows.Scan(&event.ID, &event.PaperID, &event.Timestamp, &event.EventType, &details); err != nil {
			return nil, err
		}
		event.Details = details.String
		events = append(events, event)
	}
	return events, rows.Err()
}
