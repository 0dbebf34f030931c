// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package events

import (
	"sync"
	"time"
)

// Event is a paper status change pushed to live clients
type Event struct {
	Type           string    `json:"type"` // queued, processing, completed, failed, summary_merged, deleted
	Timestamp      time.Time `json:"timestamp"`
	PaperID        int64     `json:"paper_id"`
	Status         string    `json:"status,omitempty"`
	SummaryVersion int       `json:"summary_version,omitempty"`
	Message        string    `json:"message,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Broadcaster fans events out to subscribers
type Broadcaster struct {
	subscribers map[chan Event]bool
	mu          sync.RWMutex
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]bool),
	}
}

// Subscribe adds a new subscriber
func (eb *Broadcaster) Subscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[ch] = true
}

// Unsubscribe removes a subscriber and closes its channel
func (eb *Broadcaster) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.subscribers[ch] {
		delete(eb.subscribers, ch)
		close(ch)
	}
}

// Broadcast sends an event to all subscribers without blocking
func (eb *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Channel is full, skip this subscriber
		}
	}
}

// PaperStatus broadcasts a status transition.
func (eb *Broadcaster) PaperStatus(paperID int64, status string, version int, errMsg string) {
	eb.Broadcast(Event{
		Type:           status,
		PaperID:        paperID,
		Status:         status,
		SummaryVersion: version,
		Error:          errMsg,
	})
}
