// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a paper's append-only conversation log.
type Message struct {
	ID         int64     `json:"id"`
	PaperID    int64     `json:"-"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	SourceHint *string   `json:"source_hint"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageStore manages conversation messages
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore creates a new message store
func NewMessageStore(db *sql.DB) (*MessageStore, error) {
	if err := initCoreSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize messages schema: %w", err)
	}
	return &MessageStore{db: db}, nil
}

// Append inserts a message and returns it with its id.
func (s *MessageStore) Append(ctx context.Context, paperID int64, role Role, content string, sourceHint *string) (*Message, error) {
	now := time.Now().UTC()
	var hint interface{}
	if sourceHint != nil {
		hint = *sourceHint
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (paper_id, role, content, source_hint, created_at) VALUES (?, ?, ?, ?, ?)",
		paperID, string(role), content, hint, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:         id,
		PaperID:    paperID,
		Role:       role,
		Content:    content,
		SourceHint: sourceHint,
		CreatedAt:  now,
	}, nil
}

// ListByPaper returns the conversation in insertion order.
func (s *MessageStore) ListByPaper(ctx context.Context, paperID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, paper_id, role, content, source_hint, created_at FROM messages WHERE paper_id = ? ORDER BY id ASC",
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		var role string
		var hint sql.NullString
		if err := rows.Scan(&m.ID, &m.PaperID, &role, &m.Content, &hint, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		if hint.Valid {
			h := hint.String
			m.SourceHint = &h
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
