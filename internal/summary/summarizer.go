// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package summary

import (
	"context"
	"time"

	"github.com/paper-reader/internal/ai"
	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/logger"
)

// DefaultMaxPromptChars bounds the full text sent for summarization. Text past
// the limit is dropped.
const DefaultMaxPromptChars = 120000

// Config holds summarization settings.
type Config struct {
	MaxPromptChars int
}

// Summarizer produces and merges multilingual summaries
type Summarizer struct {
	gen ai.Generator
	cfg Config
}

// NewSummarizer creates a summarizer over gen.
func NewSummarizer(gen ai.Generator, cfg Config) *Summarizer {
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}
	return &Summarizer{gen: gen, cfg: cfg}
}

// Summarize asks the model for a complete summary of fullText.
func (s *Summarizer) Summarize(ctx context.Context, title, fullText string) (Summary, error) {
	reply, err := s.gen.Generate(ctx, summaryPrompt(title, TrimText(fullText, s.cfg.MaxPromptChars)))
	if err != nil {
		return Summary{}, err
	}
	return Decode(reply)
}

// MergeDiscussion asks the model to fold one chat exchange into current.
// Nothing is persisted.
func (s *Summarizer) MergeDiscussion(ctx context.Context, title string, current Summary, userMessage, answer, sourceHint string) (Summary, error) {
	reply, err := s.gen.Generate(ctx, mergePrompt(title, current, userMessage, answer, sourceHint))
	if err != nil {
		return Summary{}, err
	}
	return Decode(reply)
}

// SummaryWriter persists a merged summary and advances its version.
type SummaryWriter interface {
	ApplySummary(ctx context.Context, paperID int64, summaryJSON string) (int, time.Time, error)
}

// Merger folds chat exchanges into a paper's stored summary
type Merger struct {
	summarizer *Summarizer
	writer     SummaryWriter
}

// NewMerger creates a merger.
func NewMerger(summarizer *Summarizer, writer SummaryWriter) *Merger {
	return &Merger{summarizer: summarizer, writer: writer}
}

// Merge updates paper's summary with the latest exchange. On success the
// merged summary is stored and summary_version advances by one; on any error
// the stored summary is untouched.
func (m *Merger) Merge(ctx context.Context, paper *database.Paper, userMessage, answer, sourceHint string) (Summary, int, time.Time, error) {
	current := FromJSON(paper.SummaryJSON)
	merged, err := m.summarizer.MergeDiscussion(ctx, paper.Title, current, userMessage, answer, sourceHint)
	if err != nil {
		logger.Warnf("[MERGE] paper %d: merge rejected: %v", paper.ID, err)
		return Summary{}, 0, time.Time{}, err
	}

	version, at, err := m.writer.ApplySummary(ctx, paper.ID, merged.JSON())
	if err != nil {
		return Summary{}, 0, time.Time{}, err
	}
	logger.Printf("[MERGE] paper %d: summary now at version %d", paper.ID, version)
	return merged, version, at, nil
}

// TrimText cuts text to at most maxChars characters.
func TrimText(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	r := []rune(text)
	if len(r) <= maxChars {
		return text
	}
	return string(r[:maxChars])
}
