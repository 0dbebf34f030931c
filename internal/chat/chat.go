// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package chat

import (
	"context"
	"strings"

	"github.com/paper-reader/internal/ai"
	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/retrieval"
)

// Config holds chat settings.
type Config struct {
	RetrievalLimit int
}

// ChunkRetriever returns the chunks that ground an answer.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, paperID int64, query string, limit int) []database.Chunk
}

// Responder answers questions about one paper from its retrieved chunks
type Responder struct {
	gen       ai.Generator
	retriever ChunkRetriever
	cfg       Config
}

// NewResponder creates a responder.
func NewResponder(gen ai.Generator, retriever ChunkRetriever, cfg Config) *Responder {
	if cfg.RetrievalLimit <= 0 {
		cfg.RetrievalLimit = retrieval.DefaultLimit
	}
	return &Responder{gen: gen, retriever: retriever, cfg: cfg}
}

// Reply retrieves evidence for question and asks the model for an answer.
// The source hint describes the retrieved pages.
func (r *Responder) Reply(ctx context.Context, paper *database.Paper, question string) (answer, sourceHint string, err error) {
	chunks := r.retriever.Retrieve(ctx, paper.ID, question, r.cfg.RetrievalLimit)
	sourceHint = retrieval.FormatSourceHint(chunks)

	out, err := r.gen.Generate(ctx, BuildPrompt(paper, chunks, question))
	if err != nil {
		return "", sourceHint, err
	}
	return strings.TrimSpace(out), sourceHint, nil
}

// BuildPrompt assembles the answer prompt: instructions, the current summary
// and the numbered evidence chunks.
func BuildPrompt(paper *database.Paper, chunks []database.Chunk, question string) string {
	summaryJSON := strings.TrimSpace(paper.SummaryJSON)
	if summaryJSON == "" {
		summaryJSON = "{}"
	}

	var b strings.Builder
	b.WriteString("You are a research assistant for scientific papers. ")
	b.WriteString("Use English source content as the primary basis for understanding and reasoning first. ")
	b.WriteString("Answer in Chinese by default unless user asks other language. ")
	b.WriteString("Use only the retrieved chunks as evidence. ")
	b.WriteString("When answering, cite evidence with [Page X] or [Page X-Y]. ")
	b.WriteString("If evidence is insufficient, explicitly say uncertain and identify missing evidence.\n\n")
	b.WriteString("Output format rules:\n")
	b.WriteString("1) Return plain text only (no markdown symbols like ##, **, or tables).\n")
	b.WriteString("2) Use clear line breaks and short paragraphs.\n")
	b.WriteString("3) Use this section structure exactly:\n")
	b.WriteString("结论：...\n")
	b.WriteString("依据：- ...\n")
	b.WriteString("细节：- ...\n")
	b.WriteString("不确定性：...\n")
	b.WriteString("4) Keep each bullet concise and evidence-linked.\n\n")
	b.WriteString("Paper title: " + paper.Title + "\n")
	b.WriteString("Current summary JSON: " + summaryJSON + "\n\n")
	b.WriteString("Retrieved evidence chunks:\n")
	b.WriteString(retrieval.RenderContext(chunks) + "\n\n")
	b.WriteString("User question: " + question)
	return b.String()
}
