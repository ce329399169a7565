package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/provider"
	"github.com/rhuss/lokal/pkg/retrieval"
)

// Generation is the result of a generate request.
type Generation struct {
	Text       string         `json:"text"`
	Model      string         `json:"model"`
	TokensUsed int            `json:"tokens_used"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ToolOutput is the result of a tool_call request.
type ToolOutput struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// Multimodal is the placeholder result of a multimodal request.
type Multimodal struct {
	Text        string `json:"text"`
	Modality    string `json:"modality"`
	Placeholder bool   `json:"placeholder"`
	Message     string `json:"message"`
}

const multimodalMessage = "Multimodal processing is not implemented; the input was accepted but not analyzed."

func (e *Engine) handleGenerate(ctx context.Context, req *api.Request) *api.Response {
	if e.svc.Generator == nil {
		return api.Failure(req.ID, api.NewProviderUnavailableError("generation"))
	}
	p, err := req.GenerateParams(e.cfg.Defaults)
	if err != nil {
		return fail(req.ID, err, api.ErrorTypeInvalidRequest)
	}

	res, err := e.generate(ctx, &provider.GenerateRequest{
		Prompt:      req.Prompt,
		Model:       p.Model,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		return fail(req.ID, err, api.ErrorTypeProviderError)
	}

	model := res.Model
	if model == "" {
		model = p.Model
	}
	return &api.Response{
		Success: true,
		Result: &Generation{
			Text:       res.Text,
			Model:      model,
			TokensUsed: res.TokensUsed,
			Metadata:   res.Metadata,
		},
		Metadata: map[string]any{
			"model":       model,
			"tokens_used": res.TokensUsed,
			"service":     ServiceGeneration,
		},
	}
}

func (e *Engine) handleRAG(ctx context.Context, req *api.Request) *api.Response {
	if e.svc.Documents == nil {
		return api.Failure(req.ID, api.NewProviderUnavailableError("retrieval"))
	}
	p, err := req.RAGParams(e.cfg.Defaults)
	if err != nil {
		return fail(req.ID, err, api.ErrorTypeInvalidRequest)
	}

	matches, err := e.svc.Documents.Retrieve(ctx, req.Prompt, p.TopK)
	if err != nil {
		return fail(req.ID, err, api.ErrorTypeProviderError)
	}

	answer, generated := e.answer(ctx, req.Prompt, matches)
	return &api.Response{
		Success: true,
		Result:  &answer,
		Metadata: map[string]any{
			"top_k":         p.TopK,
			"sources_count": len(answer.Sources),
			"confidence":    answer.Confidence,
			"generated":     generated,
			"service":       ServiceRetrieval,
		},
	}
}

// answer synthesizes a response from matches. With a generator and
// RAGGenerate set the text is generated from a context prompt; a failed
// generation falls back to the templated summary.
func (e *Engine) answer(ctx context.Context, query string, matches []retrieval.Match) (retrieval.Answer, bool) {
	summary := retrieval.Summarize(query, matches)
	if len(matches) == 0 || e.svc.Generator == nil || !e.cfg.RAGGenerate {
		return summary, false
	}

	res, err := e.generate(ctx, &provider.GenerateRequest{
		Prompt:      retrieval.ContextPrompt(query, matches, len(matches)),
		Model:       e.cfg.Defaults.Model,
		MaxTokens:   e.cfg.Defaults.MaxTokens,
		Temperature: e.cfg.Defaults.Temperature,
	})
	if err != nil || res.Text == "" {
		slog.Warn("answer generation failed, using summary", "error", err)
		return summary, false
	}
	summary.Answer = res.Text
	return summary, true
}

func (e *Engine) handleToolCall(ctx context.Context, req *api.Request) *api.Response {
	if e.svc.Tools == nil {
		return api.Failure(req.ID, api.NewProviderUnavailableError("tools"))
	}
	p, err := req.ToolCallParams()
	if err != nil {
		return fail(req.ID, err, api.ErrorTypeInvalidRequest)
	}

	res, err := e.svc.Tools.Invoke(ctx, p.ToolName, p.ToolParams)
	if err != nil {
		return fail(req.ID, err, api.ErrorTypeProviderError)
	}
	return &api.Response{
		Success: true,
		Result:  &ToolOutput{Tool: res.Tool, Result: res.Output},
		Metadata: map[string]any{
			"tool_name": p.ToolName,
			"service":   ServiceTools,
		},
	}
}

func (e *Engine) handleMultimodal(ctx context.Context, req *api.Request) *api.Response {
	p, err := req.MultimodalParams()
	if err != nil {
		return fail(req.ID, err, api.ErrorTypeInvalidRequest)
	}
	return &api.Response{
		Success: true,
		Result: &Multimodal{
			Text:        fmt.Sprintf("Multimodal processing for %s input: %s", p.Modality, req.Prompt),
			Modality:    p.Modality,
			Placeholder: true,
			Message:     multimodalMessage,
		},
		Metadata: map[string]any{
			"modality":       p.Modality,
			"has_input_data": p.InputData != nil,
			"service":        "multimodal",
		},
	}
}
