// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package retrieval

import (
	"math"
	"reflect"
	"testing"

	"github.com/paper-reader/internal/database"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Deep-Learning 深度学习", []string{"deep", "learning", "深度", "学习"}},
		{"snake_case 42x", []string{"snake_case", "42x"}},
		{"日本語のテキスト", []string{"日本", "語", "のテ", "キス", "ト"}},
		{"accuracy accuracy", []string{"accuracy", "accuracy"}},
		{"?!  ", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		content string
		want    float64
	}{
		{"substring and token", "accuracy", "Results show 95% accuracy.", 8 + 1 + 0.9},
		{"token count capped at three", "accuracy accuracy", "accuracy accuracy accuracy accuracy", 8 + 2*(1+3*0.9)},
		{"case folded", "ACCURACY", "Accuracy matters", 8 + 1 + 0.9},
		{"token without substring", "model accuracy", "accuracy of the model", 2 * (1 + 0.9)},
		{"shared character fallback", "accuracy", "Deep Learning for X. Problem statement about Y.", 4 * 0.04},
		{"empty query", "", "anything", 0},
		{"no shared characters", "zzz", "abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.query, tt.content); !almostEqual(got, tt.want) {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func samplePaper() []database.Chunk {
	return []database.Chunk{
		{ID: 1, PageStart: 1, PageEnd: 1, Content: "Deep Learning for X. Problem statement about Y."},
		{ID: 2, PageStart: 2, PageEnd: 2, Content: "Results show 95% accuracy."},
	}
}

func TestRank_AccuracyScenario(t *testing.T) {
	top := Rank("accuracy", samplePaper(), 1)
	if len(top) != 1 || top[0].PageStart != 2 {
		t.Fatalf("Expected the page 2 chunk first, got %+v", top)
	}
	if hint := FormatSourceHint(top); hint != "Retrieved context: Page 2" {
		t.Errorf("Unexpected hint %q", hint)
	}
}

func TestRank_TieBreak(t *testing.T) {
	chunks := []database.Chunk{
		{ID: 9, PageStart: 3, PageEnd: 3, Content: "loss curve"},
		{ID: 7, PageStart: 1, PageEnd: 1, Content: "loss curve"},
		{ID: 4, PageStart: 1, PageEnd: 1, Content: "loss curve"},
	}
	got := Rank("loss", chunks, 6)
	ids := []int64{got[0].ID, got[1].ID, got[2].ID}
	if !reflect.DeepEqual(ids, []int64{4, 7, 9}) {
		t.Errorf("Expected ties broken by page then id, got %v", ids)
	}
}

func TestRank_NoSignalFallback(t *testing.T) {
	chunks := []database.Chunk{
		{ID: 3, PageStart: 1, PageEnd: 1, Content: "abc"},
		{ID: 1, PageStart: 2, PageEnd: 2, Content: "abc"},
		{ID: 2, PageStart: 1, PageEnd: 1, Content: "abc"},
	}
	for _, q := range []string{"", "zzz"} {
		got := Rank(q, chunks, 2)
		if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
			t.Errorf("Query %q: expected first chunks by (page, id), got %+v", q, got)
		}
	}
}

func TestRank_Deterministic(t *testing.T) {
	chunks := []database.Chunk{
		{ID: 1, PageStart: 1, PageEnd: 1, Content: "transformer attention heads"},
		{ID: 2, PageStart: 2, PageEnd: 2, Content: "attention is all you need"},
		{ID: 3, PageStart: 2, PageEnd: 2, Content: "recurrent networks"},
		{ID: 4, PageStart: 5, PageEnd: 5, Content: "Attention attention attention"},
	}
	first := Rank("attention heads", chunks, 6)
	for i := 0; i < 10; i++ {
		if again := Rank("attention heads", chunks, 6); !reflect.DeepEqual(first, again) {
			t.Fatalf("Run %d produced a different order", i)
		}
	}
	if first[0].ID != 1 {
		t.Errorf("Expected exact phrase match first, got %d", first[0].ID)
	}
}

func TestRank_Limits(t *testing.T) {
	if got := Rank("x", nil, 6); len(got) != 0 {
		t.Errorf("Expected empty result for no chunks, got %d", len(got))
	}
	if got := Rank("accuracy", samplePaper(), 0); len(got) != 0 {
		t.Errorf("Expected empty result for zero limit, got %d", len(got))
	}
}
