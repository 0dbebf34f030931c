// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"
)

type openAIGenerator struct {
	client    openai.Client
	model     string
	maxTokens int
}

func newOpenAIGenerator(cfg Config, model string) *openAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// a failed call fails the paper; refresh is the retry
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	return &openAIGenerator{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxOutputTokens,
	}
}

// Generate sends prompt as a single Responses API input.
func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           shared.ResponsesModel(g.model),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		MaxOutputTokens: openai.Int(int64(g.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrServiceUnavailable, err)
	}
	return resp.OutputText(), nil
}
