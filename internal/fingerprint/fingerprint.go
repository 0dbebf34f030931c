// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// MaxFingerprintRunes bounds how much normalized text feeds the digest.
const MaxFingerprintRunes = 500000

var (
	nonKeyRun = regexp.MustCompile(`[^a-z0-9\x{4e00}-\x{9fff}\x{3040}-\x{30ff}]+`)
	spaceRun  = regexp.MustCompile(`\s+`)
)

// NormalizeTitle returns the fuzzy dedup key for a title: lowercase, every run
// outside latin alphanumerics, CJK ideographs and kana replaced by one space.
func NormalizeTitle(title string) string {
	lowered := strings.TrimSpace(strings.ToLower(title))
	normalized := nonKeyRun.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(spaceRun.ReplaceAllString(normalized, " "))
}

// Compute returns the hex sha256 of the case-folded alphanumeric/CJK/kana
// content of fullText. Whitespace and punctuation do not affect the result.
func Compute(fullText string) string {
	normalized := nonKeyRun.ReplaceAllString(strings.ToLower(fullText), "")
	if r := []rune(normalized); len(r) > MaxFingerprintRunes {
		normalized = string(r[:MaxFingerprintRunes])
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
