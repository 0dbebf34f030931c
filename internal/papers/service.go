// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package papers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/events"
	"github.com/paper-reader/internal/fingerprint"
	"github.com/paper-reader/internal/logger"
	"github.com/paper-reader/internal/metrics"
	"github.com/paper-reader/internal/pdf"
	"github.com/paper-reader/internal/storage"
	"github.com/paper-reader/internal/summary"
)

var (
	// ErrInvalidUpload rejects files that are not PDFs.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrEmptyMessage rejects blank chat messages.
	ErrEmptyMessage = errors.New("message must not be empty")
)

const (
	msgQueued    = "上传成功，已加入解析队列。"
	msgDuplicate = "该论文已处理过，已复用历史结果。"
)

// Scheduler starts background processing for a paper.
type Scheduler interface {
	Submit(ctx context.Context, paperID int64, reason string) error
}

// Documents reads PDF bytes.
type Documents interface {
	ExtractPages(data []byte) ([]pdf.Page, error)
	PageCount(data []byte) (int, error)
	RenderPage(data []byte, page int) ([]byte, error)
}

// Responder answers a question about a paper.
type Responder interface {
	Reply(ctx context.Context, paper *database.Paper, question string) (answer, sourceHint string, err error)
}

// Merger folds a chat exchange into a paper's summary.
type Merger interface {
	Merge(ctx context.Context, paper *database.Paper, userMessage, answer, sourceHint string) (summary.Summary, int, time.Time, error)
}

// Deps wires a Service. History and Broadcaster are optional.
type Deps struct {
	Papers      *database.PaperStore
	Messages    *database.MessageStore
	History     *database.EventLogger
	Files       storage.FileStore
	Documents   Documents
	Scheduler   Scheduler
	Responder   Responder
	Merger      Merger
	Broadcaster *events.Broadcaster
}

// Service implements the paper operations behind the HTTP API and the inbox.
type Service struct {
	deps Deps
	now  func() time.Time
}

// New creates a paper service.
func New(deps Deps) *Service {
	return &Service{deps: deps, now: time.Now}
}

// ListItem is a paper in the library listing.
type ListItem struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Filename  string          `json:"filename"`
	Status    database.Status `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Detail is the full view of one paper. Summary is the stored payload as-is:
// a summary object, an {"error": ...} diagnostic, or null.
type Detail struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	Filename         string          `json:"filename"`
	Status           database.Status `json:"status"`
	Summary          json.RawMessage `json:"summary"`
	SummaryVersion   int             `json:"summary_version"`
	SummaryUpdatedAt *time.Time      `json:"summary_updated_at"`
	PageCount        int             `json:"page_count"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// UploadResult reports a new queued paper or the completed paper it duplicates.
type UploadResult struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Status      database.Status `json:"status"`
	Duplicate   bool            `json:"duplicate"`
	DuplicateOf *int64          `json:"duplicate_of"`
	Message     string          `json:"message"`
}

// ChatResult is the reply to one chat turn. SummaryError is set when the
// answer was produced but folding it into the summary was rejected.
type ChatResult struct {
	Answer           *database.Message `json:"answer"`
	Summary          json.RawMessage   `json:"summary"`
	SummaryVersion   int               `json:"summary_version"`
	SummaryUpdatedAt *time.Time        `json:"summary_updated_at"`
	SummaryError     string            `json:"summary_error,omitempty"`
}

func rawSummary(stored string) json.RawMessage {
	if stored == "" || !json.Valid([]byte(stored)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(stored)
}

func fallbackTitle(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Upload stores a PDF, derives its title and fingerprint and either reuses a
// completed duplicate or creates a queued paper and schedules processing.
// source names the caller (upload, inbox) in the processing history.
func (s *Service) Upload(ctx context.Context, filename string, data []byte, source string) (*UploadResult, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: Only PDF file is allowed.", ErrInvalidUpload)
	}
	if len(data) == 0 {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}

	key := storage.NewKey(filename, s.now())
	if err := s.deps.Files.Save(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	title := fallbackTitle(filename)
	var fp string
	if pages, err := s.deps.Documents.ExtractPages(data); err != nil {
		logger.Warnf("[UPLOAD] %s: extraction failed, deduplicating by file name only: %v", filename, err)
	} else {
		title = fingerprint.InferTitle(title, pages)
		fp = fingerprint.Compute(pdf.BuildFullText(pages))
	}
	canonical := fingerprint.NormalizeTitle(title)

	dup, err := s.deps.Papers.FindDuplicate(ctx, fp, canonical)
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	if dup != nil {
		s.discard(ctx, key)
		metrics.UploadsTotal.WithLabelValues("duplicate").Inc()
		s.record(ctx, dup.ID, database.EventDuplicate, filename)
		logger.Printf("[UPLOAD] %s duplicates paper %d", filename, dup.ID)
		id := dup.ID
		return &UploadResult{
			ID:          dup.ID,
			Title:       dup.Title,
			Status:      dup.Status,
			Duplicate:   true,
			DuplicateOf: &id,
			Message:     msgDuplicate,
		}, nil
	}

	paper := &database.Paper{
		Title:              title,
		CanonicalTitle:     canonical,
		ContentFingerprint: fp,
		Filename:           filename,
		StorageKey:         key,
	}
	id, err := s.deps.Papers.Create(ctx, paper)
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	metrics.UploadsTotal.WithLabelValues("queued").Inc()
	s.record(ctx, id, database.EventUploaded, source)
	s.announce(events.Event{Type: string(database.StatusQueued), PaperID: id, Status: string(database.StatusQueued)})
	logger.Printf("[UPLOAD] paper %d created from %s (%s)", id, filename, source)

	s.submit(ctx, id, source)
	return &UploadResult{
		ID:      id,
		Title:   title,
		Status:  database.StatusQueued,
		Message: msgQueued,
	}, nil
}

// List returns every paper, newest first.
func (s *Service) List(ctx context.Context) ([]ListItem, error) {
	all, err := s.deps.Papers.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]ListItem, 0, len(all))
	for _, p := range all {
		items = append(items, ListItem{
			ID:        p.ID,
			Title:     p.Title,
			Filename:  p.Filename,
			Status:    p.Status,
			CreatedAt: p.CreatedAt,
		})
	}
	return items, nil
}

// Get returns a paper's detail. page_count is 0 when the file cannot be read.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	p, err := s.deps.Papers.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &Detail{
		ID:               p.ID,
		Title:            p.Title,
		Filename:         p.Filename,
		Status:           p.Status,
		Summary:          rawSummary(p.SummaryJSON),
		SummaryVersion:   p.SummaryVersion,
		SummaryUpdatedAt: p.SummaryUpdatedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if data, err := s.deps.Files.Read(ctx, p.StorageKey); err != nil {
		logger.Warnf("[PAPERS] paper %d: file unavailable: %v", id, err)
	} else if n, err := s.deps.Documents.PageCount(data); err != nil {
		logger.Warnf("[PAPERS] paper %d: page count failed: %v", id, err)
	} else {
		d.PageCount = n
	}
	return d, nil
}

// OpenPDF returns the original file name and bytes of a paper.
func (s *Service) OpenPDF(ctx context.Context, id int64) (string, []byte, error) {
	p, err := s.deps.Papers.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	data, err := s.deps.Files.Read(ctx, p.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, fmt.Errorf("paper %d file: %w", id, database.ErrNotFound)
		}
		return "", nil, err
	}
	return p.Filename, data, nil
}

// RenderPage returns a one-page PDF of page (1-based). Out of range pages fail
// with pdf.ErrPageOutOfRange.
func (s *Service) RenderPage(ctx context.Context, id int64, page int) ([]byte, error) {
	_, data, err := s.OpenPDF(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.deps.Documents.RenderPage(data, page)
}

// Messages returns a paper's conversation in insertion order.
func (s *Service) Messages(ctx context.Context, id int64) ([]database.Message, error) {
	return s.deps.Messages.ListByPaper(ctx, id)
}

// Chat runs one turn: the user message is stored first, then answered from
// retrieved chunks. With updateSummary the exchange is merged into the
// summary; a rejected merge keeps the previous summary and is reported in
// SummaryError.
func (s *Service) Chat(ctx context.Context, id int64, message string, updateSummary bool) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	p, err := s.deps.Papers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Messages.Append(ctx, id, database.RoleUser, message, nil); err != nil {
		return nil, err
	}

	answer, hint, err := s.deps.Responder.Reply(ctx, p, message)
	if err != nil {
		return nil, err
	}

	res := &ChatResult{
		Summary:          rawSummary(p.SummaryJSON),
		SummaryVersion:   p.SummaryVersion,
		SummaryUpdatedAt: p.SummaryUpdatedAt,
	}
	if updateSummary {
		merged, version, at, err := s.deps.Merger.Merge(ctx, p, message, answer, hint)
		if err != nil {
			metrics.SummaryMergesTotal.WithLabelValues("rejected").Inc()
			res.SummaryError = err.Error()
		} else {
			metrics.SummaryMergesTotal.WithLabelValues("merged").Inc()
			res.Summary = json.RawMessage(merged.JSON())
			res.SummaryVersion = version
			res.SummaryUpdatedAt = &at
			s.record(ctx, id, database.EventMerged, fmt.Sprintf("summary_version=%d", version))
			s.announce(events.Event{Type: database.EventMerged, PaperID: id, Status: string(p.Status), SummaryVersion: version})
		}
	} else {
		metrics.SummaryMergesTotal.WithLabelValues("skipped").Inc()
	}

	msg, err := s.deps.Messages.Append(ctx, id, database.RoleAssistant, answer, &hint)
	if err != nil {
		return nil, err
	}
	res.Answer = msg
	metrics.ChatTurnsTotal.Inc()
	return res, nil
}

// Refresh re-queues a paper for a full pipeline run and returns its detail.
func (s *Service) Refresh(ctx context.Context, id int64) (*Detail, error) {
	if err := s.deps.Papers.SetStatus(ctx, id, database.StatusQueued); err != nil {
		return nil, err
	}
	s.record(ctx, id, database.EventRefreshed, "")
	s.announce(events.Event{Type: string(database.StatusQueued), PaperID: id, Status: string(database.StatusQueued)})
	s.submit(ctx, id, "refresh")
	return s.Get(ctx, id)
}

// Delete removes a paper with its conversation and chunks, then its file.
func (s *Service) Delete(ctx context.Context, id int64) error {
	key, err := s.deps.Papers.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.discard(ctx, key)
	s.announce(events.Event{Type: "deleted", PaperID: id})
	logger.Printf("[PAPERS] paper %d deleted", id)
	return nil
}

// Events returns a paper's processing history, oldest first.
func (s *Service) Events(ctx context.Context, id int64) ([]database.Event, error) {
	if _, err := s.deps.Papers.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.deps.History == nil {
		return []database.Event{}, nil
	}
	return s.deps.History.GetEventsByPaper(ctx, id)
}

// submit schedules processing. A paper whose job could not be enqueued stays
// queued and is picked up by the sweeper.
func (s *Service) submit(ctx context.Context, id int64, reason string) {
	if err := s.deps.Scheduler.Submit(ctx, id, reason); err != nil {
		logger.Errorf("[PAPERS] paper %d: failed to schedule processing: %v", id, err)
	}
}

func (s *Service) discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.deps.Files.Delete(ctx, key); err != nil {
		logger.Warnf("[PAPERS] failed to delete stored file %s: %v", key, err)
	}
}

func (s *Service) record(ctx context.Context, id int64, eventType, details string) {
	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.LogEvent(ctx, id, eventType, details); err != nil {
		logger.Warnf("[PAPERS] paper %d: failed to log %s event: %v", id, eventType, err)
	}
}

func (s *Service) announce(ev events.Event) {
	if s.deps.Broadcaster != nil {
		s.deps.Broadcaster.Broadcast(ev)
	}
}
