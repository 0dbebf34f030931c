// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package fingerprint

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/paper-reader/internal/pdf"
)

const (
	titlePages    = 2
	titleLines    = 40
	titleMinRunes = 16
	titleMaxRunes = 200
)

var (
	lineSpace    = regexp.MustCompile(`\s+`)
	numericOnly  = regexp.MustCompile(`^[0-9.\- ]+$`)
	hasLetter    = regexp.MustCompile(`[A-Za-z\x{4e00}-\x{9fff}\x{3040}-\x{30ff}]`)
	authorJoiner = regexp.MustCompile(`\b(and|et al\.?)\b`)

	affiliationMarkers = []string{
		"@",
		"university",
		"institute",
		"department",
		"laboratory",
		"school of",
		"college of",
		"arxiv",
		"http://",
		"https://",
		"corresponding author",
	}
)

// InferTitle looks for a headline in the first two pages and falls back to
// fallback when nothing qualifies. Two consecutive title-like lines are
// joined when the first one does not end a sentence.
func InferTitle(fallback string, pages []pdf.Page) string {
	if len(pages) > titlePages {
		pages = pages[:titlePages]
	}

	for _, page := range pages {
		lines := candidateLines(page.Text)
		for i, line := range lines {
			if !isTitleLike(line) {
				continue
			}
			if i+1 < len(lines) {
				next := lines[i+1]
				if isTitleLike(next) &&
					!isAuthorOrAffiliation(next) &&
					runeLen(line)+runeLen(next) <= titleMaxRunes &&
					!strings.HasSuffix(line, ".") && !strings.HasSuffix(line, "?") &&
					!strings.HasSuffix(line, "!") && !strings.HasSuffix(line, ":") {
					return safeTitle(line+" "+next, fallback)
				}
			}
			return safeTitle(line, fallback)
		}
	}
	return strings.TrimSpace(fallback)
}

func candidateLines(text string) []string {
	var raw []string
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		raw = append(raw, ln)
		if len(raw) == titleLines {
			break
		}
	}

	lines := make([]string, 0, len(raw))
	for _, ln := range raw {
		if c := cleanLine(ln); c != "" {
			lines = append(lines, c)
		}
	}
	return lines
}

func cleanLine(raw string) string {
	return strings.Trim(lineSpace.ReplaceAllString(raw, " "), " -_:\t")
}

func isAuthorOrAffiliation(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range affiliationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if authorJoiner.MatchString(lower) && runeLen(line) < 120 {
		return true
	}
	if strings.Count(line, ",") >= 2 && len(strings.Fields(line)) < 16 {
		return true
	}
	return false
}

func isTitleLike(line string) bool {
	n := runeLen(line)
	if n < titleMinRunes || n > titleMaxRunes {
		return false
	}
	if numericOnly.MatchString(line) {
		return false
	}
	if isAuthorOrAffiliation(line) {
		return false
	}
	if !hasLetter.MatchString(line) {
		return false
	}
	// prose sentences, not headlines
	return strings.Count(line, ".") < 2
}

func safeTitle(title, fallback string) string {
	lower := strings.ToLower(title)
	if (strings.Count(title, ",") >= 2 && len(strings.Fields(title)) < 20) || strings.Count(lower, " and ") >= 2 {
		return strings.TrimSpace(fallback)
	}
	return title
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
