// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"
)

// SettingsView is the non-secret runtime configuration shown to clients.
type SettingsView struct {
	AIProvider     string `json:"ai_provider"`
	APIKey         string `json:"api_key"` // Masked
	SummaryModel   string `json:"summary_model"`
	ChatModel      string `json:"chat_model"`
	StorageBackend string `json:"storage_backend"`
	QueueBackend   string `json:"queue_backend"`
	Workers        int    `json:"workers"`
	RetrievalLimit int    `json:"retrieval_limit"`
	InboxDir       string `json:"inbox_dir,omitempty"`
}

// HandleGetConfig returns the current configuration
func (s *Server) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Settings)
}
