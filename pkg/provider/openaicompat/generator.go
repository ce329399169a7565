package openaicompat

import (
	"context"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/provider"
)

// Generator implements provider.Generator against /v1/chat/completions.
type Generator struct {
	c *client
}

var _ provider.Generator = (*Generator)(nil)

// NewGenerator creates a Generator for the backend described by cfg.
func NewGenerator(cfg Config) (*Generator, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Generator{c: c}, nil
}

// Name returns "openai".
func (g *Generator) Name() string { return "openai" }

// Generate sends the prompt as a single user message and returns the first
// choice.
func (g *Generator) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResult, error) {
	chatReq := ChatCompletionRequest{
		Model: g.c.resolveModel(req.Model),
		N:     1,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, ChatMessage{Role: "system", Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, ChatMessage{Role: "user", Content: req.Prompt})
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		chatReq.MaxTokens = &maxTokens
	}
	temperature := req.Temperature
	chatReq.Temperature = &temperature

	var chatResp ChatCompletionResponse
	if err := g.c.post(ctx, "/v1/chat/completions", chatReq, &chatResp); err != nil {
		return nil, err
	}
	if len(chatResp.Choices) == 0 {
		return nil, api.NewProviderExecutionError("backend returned no choices")
	}

	choice := chatResp.Choices[0]
	result := &provider.GenerateResult{
		Text:  choice.Message.Content,
		Model: chatResp.Model,
		Metadata: map[string]any{
			"provider":      "openai",
			"finish_reason": choice.FinishReason,
		},
	}
	if chatResp.Usage != nil {
		result.TokensUsed = chatResp.Usage.CompletionTokens
	}
	return result, nil
}

// Close releases idle connections.
func (g *Generator) Close() error {
	g.c.close()
	return nil
}
