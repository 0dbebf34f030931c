// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paper-reader/internal/metrics"
)

// ErrServiceUnavailable means the generation backend is unconfigured or
// could not be reached.
var ErrServiceUnavailable = errors.New("text generation service unavailable")

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures the generation backend.
type Config struct {
	Provider        string // openai or anthropic
	APIKey          string
	BaseURL         string
	MaxOutputTokens int
}

const defaultMaxOutputTokens = 16000

// NewGenerator builds a generator for model. Without an API key it returns a
// generator that always fails with ErrServiceUnavailable, so the server still
// starts and papers end up failed with a readable diagnostic.
func NewGenerator(cfg Config, model string) Generator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Unavailable{Reason: fmt.Sprintf("%s API key is missing", providerName(cfg.Provider))}
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}

	switch providerName(cfg.Provider) {
	case "anthropic":
		return newAnthropicGenerator(cfg, model)
	default:
		return newOpenAIGenerator(cfg, model)
	}
}

func providerName(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "anthropic", "claude":
		return "anthropic"
	default:
		return "openai"
	}
}

// Unavailable is the generator used when no backend is configured.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrServiceUnavailable, u.Reason)
}

// timed records call latency for one purpose (summary, chat, merge).
type timed struct {
	next     Generator
	provider string
	purpose  string
}

// Timed wraps g so every call is observed in the generation latency histogram.
func Timed(g Generator, provider, purpose string) Generator {
	return &timed{next: g, provider: providerName(provider), purpose: purpose}
}

func (t *timed) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.GenerationSeconds.WithLabelValues(t.provider, t.purpose), start)
	return t.next.Generate(ctx, prompt)
}
