package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rhuss/lokal/pkg/provider"
)

// Generator produces templated text. Prompts mentioning "blog" get a blog
// post skeleton, prompts mentioning "summary" a one-line summary, anything
// else an echo of the prompt head.
type Generator struct {
	// Latency delays every call, honouring context cancellation. Used to
	// exercise request deadlines.
	Latency time.Duration

	// Err, when set, is returned by every call.
	Err error
}

var _ provider.Generator = (*Generator)(nil)

// NewGenerator creates a Generator without latency.
func NewGenerator() *Generator {
	return &Generator{}
}

// Name returns "mock".
func (g *Generator) Name() string { return "mock" }

// Generate returns the templated text for req.Prompt.
func (g *Generator) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResult, error) {
	if g.Latency > 0 {
		timer := time.NewTimer(g.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Err != nil {
		return nil, g.Err
	}

	var text string
	lower := strings.ToLower(req.Prompt)
	switch {
	case strings.Contains(lower, "blog"):
		text = blogPost(req.Prompt)
	case strings.Contains(lower, "summary"):
		text = fmt.Sprintf("[LOCAL AI SUMMARY] %s... This content has been processed locally.", head(req.Prompt, 100))
	default:
		text = fmt.Sprintf("[LOCAL AI] Generated response for: %s...", head(req.Prompt, 50))
	}

	tokens := EstimateTokens(text)
	if req.MaxTokens > 0 && tokens > req.MaxTokens {
		tokens = req.MaxTokens
	}

	return &provider.GenerateResult{
		Text:       text,
		TokensUsed: tokens,
		Model:      req.Model,
		Metadata: map[string]any{
			"provider": "mock",
			"local":    true,
		},
	}, nil
}

// EstimateTokens approximates a token count as the number of
// whitespace-separated words.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func blogPost(prompt string) string {
	return strings.Join([]string{
		"# AI-Generated Blog Post",
		"",
		"## Introduction",
		"This post was generated by the local generation backend without external API calls.",
		"",
		"## Content",
		prompt,
		"",
		"## Key Benefits of Local AI",
		"- Privacy: all data stays on your device",
		"- Speed: no network latency or API limits",
		"- Cost: no usage fees or quota restrictions",
		"",
		"## Conclusion",
		"Local processing keeps content generation under your control.",
	}, "\n")
}
