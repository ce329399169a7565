package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/retrieval"
	"github.com/rhuss/lokal/pkg/tools"
)

// Capabilities describes what the engine can currently do.
type Capabilities struct {
	Services      map[string]bool    `json:"services"`
	Kinds         []api.Kind         `json:"kinds"`
	Tools         []tools.Definition `json:"tools"`
	Contexts      []string           `json:"contexts"`
	ContextCount  int                `json:"context_count"`
	DocumentStats *retrieval.Stats   `json:"document_stats,omitempty"`
	Generator     string             `json:"generator,omitempty"`
}

// Capabilities reports services, tools, context ids and document stats.
func (e *Engine) Capabilities() Capabilities {
	c := Capabilities{
		Services: e.services(),
		Kinds:    api.Kinds,
		Tools:    []tools.Definition{},
		Contexts: []string{},
	}
	if e.svc.Tools != nil {
		c.Tools = e.svc.Tools.List()
	}
	if e.svc.Contexts != nil {
		c.Contexts = e.svc.Contexts.IDs()
		c.ContextCount = len(c.Contexts)
	}
	if e.svc.Documents != nil {
		st := e.svc.Documents.Stats()
		c.DocumentStats = &st
	}
	if e.svc.Generator != nil {
		c.Generator = e.svc.Generator.Name()
	}
	return c
}

var sampleDocuments = []retrieval.Input{
	{
		Content:  "Local AI models provide privacy, cost-effectiveness, and independence from external APIs. They process data on-device without sending information to external servers.",
		Metadata: map[string]any{"type": "guide", "topic": "local_ai_benefits"},
	},
	{
		Content:  "Nexa SDK supports multiple AI capabilities including text generation, embeddings, vision-language models, and speech recognition across different hardware platforms.",
		Metadata: map[string]any{"type": "technical", "topic": "nexa_capabilities"},
	},
	{
		Content:  "RAG (Retrieval-Augmented Generation) combines document retrieval with text generation to provide accurate, context-aware responses based on your own knowledge base.",
		Metadata: map[string]any{"type": "explanation", "topic": "rag_overview"},
	},
	{
		Content:  "Blog automation can be enhanced with local AI models to generate content without API costs or quota limitations, ensuring consistent availability and privacy.",
		Metadata: map[string]any{"type": "application", "topic": "blog_automation"},
	},
}

// SampleData summarizes what SetupSampleData added.
type SampleData struct {
	DocumentIDs []string `json:"document_ids"`
	ContextID   string   `json:"context_id,omitempty"`
}

// SetupSampleData adds four sample documents and one sample context.
// Repeated calls add no new documents but another context record.
func (e *Engine) SetupSampleData(ctx context.Context) (*SampleData, error) {
	if e.svc.Documents == nil {
		return nil, api.NewProviderUnavailableError("retrieval")
	}
	ids, err := e.svc.Documents.AddMany(ctx, sampleDocuments)
	if err != nil {
		return nil, api.AsAPIError(err, api.ErrorTypeProviderError)
	}

	out := &SampleData{DocumentIDs: ids}
	if e.svc.Contexts != nil {
		out.ContextID, err = e.svc.Contexts.Add(ctx, "Sample Blog Context",
			"This is sample content for blog automation testing with local AI models.",
			map[string]any{"type": "blog", "purpose": "testing"})
		if err != nil {
			return nil, api.AsAPIError(err, api.ErrorTypePersistence)
		}
	}
	slog.Info("sample data set up", "documents", len(ids), "context", out.ContextID)
	return out, nil
}

// Generate processes a generate request and returns its result.
func (e *Engine) Generate(ctx context.Context, prompt string, params map[string]any) (*Generation, error) {
	resp := e.Process(ctx, &api.Request{Kind: api.KindGenerate, Prompt: prompt, Parameters: params})
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return resp.Result.(*Generation), nil
}

// QueryKnowledgeBase processes a rag_query request and returns its answer.
func (e *Engine) QueryKnowledgeBase(ctx context.Context, query string, topK int) (*retrieval.Answer, error) {
	params := map[string]any{}
	if topK > 0 {
		params["top_k"] = topK
	}
	resp := e.Process(ctx, &api.Request{Kind: api.KindRAGQuery, Prompt: query, Parameters: params})
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return resp.Result.(*retrieval.Answer), nil
}

// EnhancedQuery processes an enhanced request. The workflow result is
// returned even when the request did not succeed, alongside the error.
func (e *Engine) EnhancedQuery(ctx context.Context, prompt string, useRAG bool) (*EnhancedResult, error) {
	resp := e.Process(ctx, &api.Request{
		Kind:       api.KindEnhanced,
		Prompt:     prompt,
		Parameters: map[string]any{"use_rag": useRAG},
	})
	result, _ := resp.Result.(*EnhancedResult)
	return result, responseError(resp)
}

// CallTool processes a tool_call request and returns the tool output.
func (e *Engine) CallTool(ctx context.Context, name string, params map[string]any) (*ToolOutput, error) {
	resp := e.Process(ctx, &api.Request{
		Kind:       api.KindToolCall,
		Parameters: map[string]any{"tool_name": name, "tool_params": params},
	})
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return resp.Result.(*ToolOutput), nil
}

func responseError(resp *api.Response) error {
	if resp.Success {
		return nil
	}
	if resp.Error != nil {
		return resp.Error
	}
	return api.NewServerError("request failed without an error")
}

// Load restores documents and contexts from their persisters.
func (e *Engine) Load(ctx context.Context) error {
	var errs []error
	if e.svc.Documents != nil {
		if err := e.svc.Documents.Load(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.svc.Contexts != nil {
		if err := e.svc.Contexts.Load(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return api.NewPersistenceError(err.Error())
	}
	return nil
}

// Save writes documents and contexts through their persisters.
func (e *Engine) Save(ctx context.Context) error {
	var errs []error
	if e.svc.Documents != nil {
		if err := e.svc.Documents.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.svc.Contexts != nil {
		if err := e.svc.Contexts.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return api.NewPersistenceError(fmt.Sprintf("saving state: %v", err))
	}
	return nil
}
