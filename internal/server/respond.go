// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/paper-reader/internal/ai"
	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/logger"
	"github.com/paper-reader/internal/papers"
	"github.com/paper-reader/internal/pdf"
	"github.com/paper-reader/internal/summary"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to encode response: %v", err)
	}
}

// writeError sends {"error": msg}. detail carries the same text for clients
// that read FastAPI-style bodies.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "detail": msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, pdf.ErrPageOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, papers.ErrInvalidUpload), errors.Is(err, papers.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, summary.ErrInvalidModelOutput), errors.Is(err, summary.ErrIncompleteSummary):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, pdf.ErrPageOutOfRange):
	case errors.Is(err, database.ErrNotFound):
		msg = "Paper not found"
	case status == http.StatusInternalServerError:
		logger.Errorf("[HTTP] %s %s failed: %v", r.Method, r.URL.Path, err)
		msg = "Internal server error"
	}
	writeError(w, status, msg)
}

// pathID parses the {id} path value.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "Paper not found")
		return 0, false
	}
	return id, true
}
