// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package pdf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
	anySpace        = regexp.MustCompile(`\s+`)
	pageMarker      = regexp.MustCompile(`\[Page (\d+)\](?:\n|$)`)
)

// CleanText normalizes raw page text: carriage returns become newlines,
// horizontal whitespace runs collapse to one space, three or more newlines
// collapse to a blank line.
func CleanText(raw string) string {
	text := strings.ReplaceAll(raw, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// BuildFullText joins pages into the persisted "[Page N]\n<text>" form. A
// trailing empty page ends the text with its bare marker.
func BuildFullText(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, fmt.Sprintf("[Page %d]\n%s", p.Number, p.Text))
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// ParseFullText reverses BuildFullText. Page content comes back with all
// whitespace runs collapsed to single spaces. Text without any page marker is
// treated as a single page 1.
func ParseFullText(fullText string) []Page {
	matches := pageMarker.FindAllStringSubmatchIndex(fullText, -1)
	if len(matches) == 0 {
		text := collapse(fullText)
		if text == "" {
			return nil
		}
		return []Page{{Number: 1, Text: text}}
	}

	pages := make([]Page, 0, len(matches))
	for i, m := range matches {
		num, err := strconv.Atoi(fullText[m[2]:m[3]])
		if err != nil {
			continue
		}
		end := len(fullText)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		pages = append(pages, Page{Number: num, Text: collapse(fullText[m[1]:end])})
	}
	return pages
}

// NormalizeWhitespace collapses all whitespace runs to one space and trims.
func NormalizeWhitespace(s string) string {
	return collapse(s)
}

func collapse(s string) string {
	return strings.TrimSpace(anySpace.ReplaceAllString(s, " "))
}
