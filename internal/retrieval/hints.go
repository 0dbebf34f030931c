// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package retrieval

import (
	"fmt"
	"strings"

	"github.com/paper-reader/internal/database"
)

// NoSourceHint is the source hint when nothing was retrieved.
const NoSourceHint = "No source chunk retrieved"

// NoContext is the rendered context when nothing was retrieved.
const NoContext = "(No chunk context available)"

// FormatSourceHint lists the distinct page references of chunks in order,
// e.g. "Retrieved context: Page 2, Page 4-5".
func FormatSourceHint(chunks []database.Chunk) string {
	if len(chunks) == 0 {
		return NoSourceHint
	}

	seen := make(map[string]bool)
	var refs []string
	for _, c := range chunks {
		ref := fmt.Sprintf("Page %d", c.PageStart)
		if c.PageStart != c.PageEnd {
			ref = fmt.Sprintf("Page %d-%d", c.PageStart, c.PageEnd)
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return "Retrieved context: " + strings.Join(refs, ", ")
}

// RenderContext formats chunks as numbered evidence blocks for a prompt.
func RenderContext(chunks []database.Chunk) string {
	if len(chunks) == 0 {
		return NoContext
	}

	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Chunk %d | Page %d-%d]\n%s", i+1, c.PageStart, c.PageEnd, c.Content))
	}
	return strings.Join(parts, "\n\n")
}
