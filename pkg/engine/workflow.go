package engine

import (
	"context"
	"time"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/observability"
	"github.com/rhuss/lokal/pkg/provider"
	"github.com/rhuss/lokal/pkg/retrieval"
)

// Enhanced workflow step names.
const (
	StepRAGQuery       = "rag_query"
	StepTextGeneration = "text_generation"
	StepContextStorage = "context_storage"
)

// EnhancedContextName names the context record an enhanced request stores.
const EnhancedContextName = "Enhanced Query Result"

// Step records one stage of the enhanced workflow.
type Step struct {
	Step      string `json:"step"`
	Success   bool   `json:"success"`
	Sources   *int   `json:"sources,omitempty"`
	Tokens    *int   `json:"tokens,omitempty"`
	ContextID string `json:"context_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EnhancedResult is the result of an enhanced request.
type EnhancedResult struct {
	Steps            []Step         `json:"steps"`
	FinalResult      string         `json:"final_result"`
	CombinedMetadata map[string]any `json:"combined_metadata"`
}

func (e *Engine) handleEnhanced(ctx context.Context, req *api.Request) *api.Response {
	p, err := req.EnhancedParams(e.cfg.Defaults)
	if err != nil {
		return fail(req.ID, err, api.ErrorTypeInvalidRequest)
	}

	result := &EnhancedResult{Steps: []Step{}, CombinedMetadata: map[string]any{}}
	var servicesUsed []string
	prompt := req.Prompt

	// Retrieval augments the prompt; its failure is recorded, not fatal.
	if p.UseRAG {
		step := Step{Step: StepRAGQuery}
		matches, err := e.retrieve(ctx, req.Prompt, p.TopK)
		if err != nil {
			step.Error = api.AsAPIError(err, api.ErrorTypeProviderError).Message
			debug.Log("engine", "enhanced retrieval failed", "id", req.ID, "error", err)
		} else {
			step.Success = true
			n := len(matches)
			step.Sources = &n
			prompt = retrieval.ContextPrompt(req.Prompt, matches, e.cfg.contextDocuments())
			result.CombinedMetadata["sources"] = retrieval.Sources(matches)
			result.CombinedMetadata["confidence"] = retrieval.Confidence(matches)
			servicesUsed = append(servicesUsed, ServiceRetrieval)
		}
		e.addStep(result, step)
	}

	var genErr error
	if e.svc.Generator != nil {
		step := Step{Step: StepTextGeneration}
		res, err := e.generate(ctx, &provider.GenerateRequest{
			Prompt:      prompt,
			Model:       p.Model,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		})
		tokens := 0
		if err != nil {
			genErr = err
			step.Error = api.AsAPIError(err, api.ErrorTypeProviderError).Message
		} else {
			step.Success = true
			tokens = res.TokensUsed
			result.FinalResult = res.Text
			result.CombinedMetadata["model"] = res.Model
			result.CombinedMetadata["tokens_used"] = res.TokensUsed
		}
		step.Tokens = &tokens
		e.addStep(result, step)
		servicesUsed = append(servicesUsed, ServiceGeneration)
	}

	// A request that ran out of time must not leave a record behind.
	if ctx.Err() != nil {
		return fail(req.ID, ctx.Err(), api.ErrorTypeProviderTimeout)
	}

	if result.FinalResult != "" && e.svc.Contexts != nil {
		step := Step{Step: StepContextStorage}
		id, err := e.svc.Contexts.Add(ctx, EnhancedContextName, map[string]any{
			"query":     prompt,
			"result":    result.FinalResult,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, map[string]any{
			"type":     "enhanced_query",
			"query_id": req.ID,
		})
		if err != nil {
			step.Error = err.Error()
		} else {
			step.Success = true
			step.ContextID = id
			servicesUsed = append(servicesUsed, ServiceContexts)
		}
		e.addStep(result, step)
	}

	resp := &api.Response{
		Success: result.FinalResult != "",
		Result:  result,
		Metadata: map[string]any{
			"service":         "enhanced",
			"steps_completed": len(result.Steps),
			"services_used":   servicesUsed,
		},
	}
	if !resp.Success {
		switch {
		case genErr != nil:
			resp.Error = api.AsAPIError(genErr, api.ErrorTypeProviderError)
		case e.svc.Generator == nil:
			resp.Error = api.NewProviderUnavailableError("generation")
		default:
			resp.Error = api.NewProviderExecutionError("generation returned an empty result")
		}
	}
	return resp
}

func (e *Engine) retrieve(ctx context.Context, query string, k int) ([]retrieval.Match, error) {
	if e.svc.Documents == nil {
		return nil, api.NewProviderUnavailableError("retrieval")
	}
	return e.svc.Documents.Retrieve(ctx, query, k)
}

func (e *Engine) addStep(result *EnhancedResult, step Step) {
	status := "success"
	if !step.Success {
		status = "error"
	}
	observability.WorkflowStepsTotal.WithLabelValues(step.Step, status).Inc()
	result.Steps = append(result.Steps, step)
}
