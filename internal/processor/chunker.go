// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package processor

import (
	"fmt"
	"strings"

	"github.com/paper-reader/internal/pdf"
)

const (
	DefaultMaxChars = 1400
	DefaultOverlap  = 220
)

// Version identifies the chunking parameters. Persisted chunk sets built with
// a different version are dropped at startup and rebuilt on demand.
var Version = fmt.Sprintf("page-window-%d-%d", DefaultMaxChars, DefaultOverlap)

// Chunk is a slice of one page's text. PageStart == PageEnd because chunks
// never span pages.
type Chunk struct {
	PageStart int
	PageEnd   int
	Content   string
}

// Chunker splits page text into overlapping fixed-size windows
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker creates a chunker with the default 1400/220 window
func NewChunker() *Chunker {
	return &Chunker{
		maxChars: DefaultMaxChars,
		overlap:  DefaultOverlap,
	}
}

// NewChunkerWithSize is used when a caller needs a different window.
func NewChunkerWithSize(maxChars, overlap int) *Chunker {
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// Slice cuts text into windows of at most maxChars characters, each window
// starting overlap characters before the previous one ended. Windows are
// trimmed and blank windows are dropped. If overlap >= maxChars it is clamped
// to maxChars/4, and the window always advances by at least one character.
func (c *Chunker) Slice(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	maxChars, overlap := c.maxChars, c.overlap
	if overlap >= maxChars {
		overlap = maxChars / 4
	}

	var slices []string
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		if end < start {
			end = start
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			slices = append(slices, piece)
		}
		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next < start+1 {
			next = start + 1
		}
		start = next
	}
	return slices
}

// BuildChunks slices every non-empty page into page-tagged chunks, in page order.
func (c *Chunker) BuildChunks(pages []pdf.Page) []Chunk {
	var chunks []Chunk
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		for _, piece := range c.Slice(p.Text) {
			chunks = append(chunks, Chunk{
				PageStart: p.Number,
				PageEnd:   p.Number,
				Content:   piece,
			})
		}
	}
	return chunks
}
