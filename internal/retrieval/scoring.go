// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package retrieval

import (
	"regexp"
	"sort"
	"strings"

	"github.com/paper-reader/internal/database"
)

const (
	substringBonus = 8.0
	tokenHit       = 1.0
	tokenPerCount  = 0.9
	tokenMaxCount  = 3
	// weak signal used only when nothing else matched
	sharedCharWeight = 0.04
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+|[\x{4e00}-\x{9fff}]{1,2}|[\x{3040}-\x{30ff}]{1,2}`)

// Tokenize lowercases text and returns its word runs plus 1-2 character
// CJK and kana runs. Duplicates are kept.
func Tokenize(text string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := tokens[:0]
	for _, tok := range tokens {
		if strings.TrimSpace(tok) != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Score rates one chunk's content against query.
func Score(query, content string) float64 {
	queryLower := strings.TrimSpace(strings.ToLower(query))
	contentLower := strings.ToLower(content)

	score := 0.0
	if queryLower != "" && strings.Contains(contentLower, queryLower) {
		score += substringBonus
	}

	for _, tok := range Tokenize(query) {
		if n := strings.Count(contentLower, tok); n > 0 {
			if n > tokenMaxCount {
				n = tokenMaxCount
			}
			score += tokenHit + float64(n)*tokenPerCount
		}
	}

	if score == 0 && queryLower != "" {
		score += float64(sharedChars(queryLower, contentLower)) * sharedCharWeight
	}
	return score
}

func sharedChars(a, b string) int {
	inB := make(map[rune]struct{})
	for _, r := range b {
		inB[r] = struct{}{}
	}
	seen := make(map[rune]struct{})
	for _, r := range a {
		if _, ok := inB[r]; ok {
			seen[r] = struct{}{}
		}
	}
	return len(seen)
}

type scored struct {
	score float64
	chunk database.Chunk
}

// Rank orders chunks by descending score, then page_start, then id, and
// returns at most limit. When even the best score is not positive the scores
// are ignored and the first chunks by (page_start, id) are returned.
func Rank(query string, chunks []database.Chunk, limit int) []database.Chunk {
	if len(chunks) == 0 || limit <= 0 {
		return nil
	}

	items := make([]scored, len(chunks))
	for i, c := range chunks {
		items[i] = scored{score: Score(query, c.Content), chunk: c}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.score != b.score {
			return a.score > b.score
		}
		return byPosition(a.chunk, b.chunk)
	})

	var out []database.Chunk
	if items[0].score <= 0 {
		out = make([]database.Chunk, len(chunks))
		copy(out, chunks)
		sort.SliceStable(out, func(i, j int) bool { return byPosition(out[i], out[j]) })
	} else {
		out = make([]database.Chunk, len(items))
		for i, it := range items {
			out[i] = it.chunk
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byPosition(a, b database.Chunk) bool {
	if a.PageStart != b.PageStart {
		return a.PageStart < b.PageStart
	}
	return a.ID < b.ID
}
