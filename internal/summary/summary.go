// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidModelOutput means the model reply held no parseable JSON object.
	ErrInvalidModelOutput = errors.New("model response did not contain valid JSON")
	// ErrIncompleteSummary matches any *IncompleteSummaryError.
	ErrIncompleteSummary = errors.New("incomplete summary")
)

// Languages and Fields span the nine required summary slots.
var (
	Languages = []string{"zh", "en", "ja"}
	Fields    = []string{"question", "solution", "findings"}
)

// Section is one language's summary.
type Section struct {
	Question string `json:"question"`
	Solution string `json:"solution"`
	Findings string `json:"findings"`
}

// Summary is the multilingual structured summary of a paper.
type Summary struct {
	ZH Section `json:"zh"`
	EN Section `json:"en"`
	JA Section `json:"ja"`
}

func (s *Summary) section(lang string) *Section {
	switch lang {
	case "zh":
		return &s.ZH
	case "en":
		return &s.EN
	case "ja":
		return &s.JA
	}
	return nil
}

func (sec *Section) field(name string) *string {
	switch name {
	case "question":
		return &sec.Question
	case "solution":
		return &sec.Solution
	case "findings":
		return &sec.Findings
	}
	return nil
}

// Get returns one slot, or "" for an unknown language or field.
func (s Summary) Get(lang, field string) string {
	sec := s.section(lang)
	if sec == nil {
		return ""
	}
	if f := sec.field(field); f != nil {
		return *f
	}
	return ""
}

// JSON encodes the summary without HTML escaping.
func (s Summary) JSON() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// IncompleteSummaryError names the first empty slot.
type IncompleteSummaryError struct {
	Lang  string
	Field string
}

func (e *IncompleteSummaryError) Error() string {
	return fmt.Sprintf("Summary field missing or empty: %s.%s", e.Lang, e.Field)
}

func (e *IncompleteSummaryError) Is(target error) bool {
	return target == ErrIncompleteSummary
}

// ParseJSON decodes a model reply. If the whole text is not a JSON object,
// the span from the first '{' to the last '}' is tried.
func ParseJSON(text string) (map[string]interface{}, error) {
	text = strings.TrimSpace(text)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return obj, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		obj = nil
		if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}
	return nil, ErrInvalidModelOutput
}

// Normalize keeps every slot that holds a non-blank string (trimmed) and
// leaves the rest empty. Unknown keys are dropped.
func Normalize(raw map[string]interface{}) Summary {
	var s Summary
	for _, lang := range Languages {
		block, ok := raw[lang].(map[string]interface{})
		if !ok {
			continue
		}
		sec := s.section(lang)
		for _, name := range Fields {
			if v, ok := block[name].(string); ok && strings.TrimSpace(v) != "" {
				*sec.field(name) = strings.TrimSpace(v)
			}
		}
	}
	return s
}

// FromJSON normalizes a persisted summary payload. Anything unparseable, such
// as a failure diagnostic, yields an empty summary.
func FromJSON(payload string) Summary {
	if strings.TrimSpace(payload) == "" {
		return Summary{}
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Summary{}
	}
	return Normalize(raw)
}

// AssertComplete fails with *IncompleteSummaryError for the first empty slot,
// in zh, en, ja and question, solution, findings order.
func AssertComplete(s Summary) error {
	for _, lang := range Languages {
		for _, name := range Fields {
			if strings.TrimSpace(s.Get(lang, name)) == "" {
				return &IncompleteSummaryError{Lang: lang, Field: name}
			}
		}
	}
	return nil
}

// Decode runs the full parse, normalize, assert chain on a model reply.
func Decode(reply string) (Summary, error) {
	raw, err := ParseJSON(reply)
	if err != nil {
		return Summary{}, err
	}
	s := Normalize(raw)
	if err := AssertComplete(s); err != nil {
		return Summary{}, err
	}
	return s, nil
}
