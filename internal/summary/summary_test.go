// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package summary

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func completeRaw() map[string]interface{} {
	raw := map[string]interface{}{}
	for _, lang := range Languages {
		block := map[string]interface{}{}
		for _, f := range Fields {
			block[f] = lang + " " + f
		}
		raw[lang] = block
	}
	return raw
}

func completeJSON(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(completeRaw())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestParseJSON(t *testing.T) {
	obj, err := ParseJSON(`  {"en": {"question": "q"}}  `)
	if err != nil {
		t.Fatalf("ParseJSON failed on clean JSON: %v", err)
	}
	if _, ok := obj["en"]; !ok {
		t.Error("Expected en key")
	}

	obj, err = ParseJSON("Sure! Here it is:\n```json\n{\"zh\": {\"question\": \"问题\"}}\n```\nHope this helps.")
	if err != nil {
		t.Fatalf("ParseJSON failed with surrounding chatter: %v", err)
	}
	if _, ok := obj["zh"]; !ok {
		t.Error("Expected zh key from extracted span")
	}

	for _, bad := range []string{"", "no json here", "} backwards {", "[1, 2, 3]", "{broken"} {
		if _, err := ParseJSON(bad); !errors.Is(err, ErrInvalidModelOutput) {
			t.Errorf("ParseJSON(%q): expected ErrInvalidModelOutput, got %v", bad, err)
		}
	}
}

func TestNormalize(t *testing.T) {
	raw := map[string]interface{}{
		"zh": map[string]interface{}{"question": "  问题  ", "solution": 42, "findings": "   "},
		"en": "not an object",
		"fr": map[string]interface{}{"question": "ignored"},
	}
	s := Normalize(raw)
	if s.ZH.Question != "问题" {
		t.Errorf("Expected trimmed value, got %q", s.ZH.Question)
	}
	if s.ZH.Solution != "" || s.ZH.Findings != "" {
		t.Errorf("Expected non-string and blank values dropped, got %+v", s.ZH)
	}
	if s.EN != (Section{}) || s.JA != (Section{}) {
		t.Errorf("Expected empty sections, got %+v %+v", s.EN, s.JA)
	}
}

func TestAssertComplete(t *testing.T) {
	s := Normalize(completeRaw())
	if err := AssertComplete(s); err != nil {
		t.Fatalf("Expected complete summary, got %v", err)
	}

	s.JA.Findings = ""
	err := AssertComplete(s)
	var incomplete *IncompleteSummaryError
	if !errors.As(err, &incomplete) {
		t.Fatalf("Expected IncompleteSummaryError, got %v", err)
	}
	if incomplete.Lang != "ja" || incomplete.Field != "findings" {
		t.Errorf("Expected ja.findings, got %s.%s", incomplete.Lang, incomplete.Field)
	}
	if !errors.Is(err, ErrIncompleteSummary) {
		t.Error("Expected errors.Is(ErrIncompleteSummary)")
	}
	if err.Error() != "Summary field missing or empty: ja.findings" {
		t.Errorf("Unexpected message: %v", err)
	}
}

func TestDecode_ChatterThenIncomplete(t *testing.T) {
	reply := `blah {"zh":{"question":"问题","solution":"","findings":"发现"}} blah`
	_, err := Decode(reply)

	var incomplete *IncompleteSummaryError
	if !errors.As(err, &incomplete) {
		t.Fatalf("Expected IncompleteSummaryError, got %v", err)
	}
	if incomplete.Lang != "zh" || incomplete.Field != "solution" {
		t.Errorf("Expected zh.solution, got %s.%s", incomplete.Lang, incomplete.Field)
	}
}

func TestSummary_JSONRoundTrip(t *testing.T) {
	s := Normalize(completeRaw())
	s.EN.Findings = "accuracy <95%> & more"
	out := s.JSON()
	if strings.Contains(out, `<`) {
		t.Errorf("Expected unescaped HTML characters, got %s", out)
	}
	if back := FromJSON(out); back != s {
		t.Errorf("Round trip mismatch: %+v", back)
	}
	if FromJSON(`{"error":"boom"}`) != (Summary{}) {
		t.Error("Expected empty summary from diagnostic payload")
	}
	if FromJSON("") != (Summary{}) || FromJSON("not json") != (Summary{}) {
		t.Error("Expected empty summary from blank or invalid payload")
	}
}

func TestTrimText(t *testing.T) {
	if got := TrimText("short", 10); got != "short" {
		t.Errorf("Unexpected %q", got)
	}
	if got := TrimText("深度学习论文", 4); got != "深度学习" {
		t.Errorf("Expected rune-based cut, got %q", got)
	}
}
