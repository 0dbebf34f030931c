// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/paper-reader/internal/pdf"
)

// MaxUploadBytes bounds an uploaded PDF.
const MaxUploadBytes = 100 << 20

// ChatRequest is the body of POST /api/papers/{id}/chat. UpdateSummary
// defaults to true when omitted.
type ChatRequest struct {
	Message       string `json:"message"`
	UpdateSummary *bool  `json:"update_summary"`
}

// HandleUpload handles POST /api/papers/upload (multipart field "file").
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read upload: %v", err))
		return
	}

	res, err := s.papers.Upload(r.Context(), header.Filename, data, "upload")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleListPapers handles GET /api/papers
func (s *Server) HandleListPapers(w http.ResponseWriter, r *http.Request) {
	items, err := s.papers.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGetPaper handles GET /api/papers/{id}
func (s *Server) HandleGetPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := s.papers.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleDeletePaper handles DELETE /api/papers/{id}
func (s *Server) HandleDeletePaper(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.papers.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted_id": id,
		"message":    "Paper deleted",
	})
}

// HandleGetPDF handles GET /api/papers/{id}/pdf
func (s *Server) HandleGetPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	name, data, err := s.papers.OpenPDF(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePDF(w, strings.ReplaceAll(name, `"`, ""), data)
}

// HandleGetPage handles GET /api/papers/{id}/pdf/page/{page}
func (s *Server) HandleGetPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %q", pdf.ErrPageOutOfRange, r.PathValue("page")))
		return
	}
	data, err := s.papers.RenderPage(r.Context(), id, page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePDF(w, fmt.Sprintf("paper-%d-page-%d.pdf", id, page), data)
}

func writePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleListMessages handles GET /api/papers/{id}/chat
func (s *Server) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	msgs, err := s.papers.Messages(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleChat handles POST /api/papers/{id}/chat
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	update := true
	if req.UpdateSummary != nil {
		update = *req.UpdateSummary
	}

	res, err := s.papers.Chat(r.Context(), id, req.Message, update)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleRefresh handles POST /api/papers/{id}/refresh-summary
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := s.papers.Refresh(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleEvents handles GET /api/papers/{id}/events
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	evs, err := s.papers.Events(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}
