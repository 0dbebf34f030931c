// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"net/http"

	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/events"
	"github.com/paper-reader/internal/metrics"
	"github.com/paper-reader/internal/papers"
	"github.com/paper-reader/internal/server/middleware"
)

// PaperService is the application layer the HTTP API drives.
type PaperService interface {
	Upload(ctx context.Context, filename string, data []byte, source string) (*papers.UploadResult, error)
	List(ctx context.Context) ([]papers.ListItem, error)
	Get(ctx context.Context, id int64) (*papers.Detail, error)
	OpenPDF(ctx context.Context, id int64) (string, []byte, error)
	RenderPage(ctx context.Context, id int64, page int) ([]byte, error)
	Messages(ctx context.Context, id int64) ([]database.Message, error)
	Chat(ctx context.Context, id int64, message string, updateSummary bool) (*papers.ChatResult, error)
	Refresh(ctx context.Context, id int64) (*papers.Detail, error)
	Delete(ctx context.Context, id int64) error
	Events(ctx context.Context, id int64) ([]database.Event, error)
}

// Options configures the HTTP layer. StaticDir, when set, is served at /.
type Options struct {
	Papers      PaperService
	Broadcaster *events.Broadcaster
	StaticDir   string
	Settings    SettingsView
	Version     string
}

// Server holds the HTTP handlers
type Server struct {
	papers  PaperService
	status  *StatusHub
	opts    Options
	handler http.Handler
}

// New creates the server and its routes.
func New(opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{papers: opts.Papers, opts: opts}
	if opts.Broadcaster != nil {
		s.status = NewStatusHub(opts.Broadcaster)
	}
	s.handler = middleware.TrafficLogger(s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/papers/upload", s.HandleUpload)
	mux.HandleFunc("GET /api/papers", s.HandleListPapers)
	mux.HandleFunc("GET /api/papers/{id}", s.HandleGetPaper)
	mux.HandleFunc("DELETE /api/papers/{id}", s.HandleDeletePaper)
	mux.HandleFunc("GET /api/papers/{id}/pdf", s.HandleGetPDF)
	mux.HandleFunc("GET /api/papers/{id}/pdf/page/{page}", s.HandleGetPage)
	mux.HandleFunc("GET /api/papers/{id}/chat", s.HandleListMessages)
	mux.HandleFunc("POST /api/papers/{id}/chat", s.HandleChat)
	mux.HandleFunc("POST /api/papers/{id}/refresh-summary", s.HandleRefresh)
	mux.HandleFunc("GET /api/papers/{id}/events", s.HandleEvents)

	mux.HandleFunc("GET /api/v1/health", s.HandleHealth)
	mux.HandleFunc("GET /api/v1/config", s.HandleGetConfig)
	mux.HandleFunc("GET /api/logs/stream", HandleLogStream)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.status != nil {
		mux.HandleFunc("GET /ws/status", s.status.HandleWebSocket)
	}

	if s.opts.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return mux
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.status != nil {
		s.status.Stop()
	}
}
