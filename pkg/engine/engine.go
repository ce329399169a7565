package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/contextstore"
	lokaldebug "github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/observability"
	"github.com/rhuss/lokal/pkg/provider"
	"github.com/rhuss/lokal/pkg/retrieval"
	"github.com/rhuss/lokal/pkg/tools"
)

// Services are the capabilities the engine routes to. Any of them may be
// nil; requests needing a missing one fail with provider_unavailable.
type Services struct {
	Generator provider.Generator
	Documents *retrieval.Store
	Contexts  *contextstore.Store
	Tools     *tools.Registry
}

// Service names reported by Status.
const (
	ServiceGeneration = "local_ai"
	ServiceRetrieval  = "rag"
	ServiceTools      = "tools"
	ServiceContexts   = "contexts"
)

// Engine routes requests to capabilities and records their outcome.
type Engine struct {
	svc     Services
	cfg     Config
	history History
}

// New creates an Engine.
func New(svc Services, cfg Config) *Engine {
	if cfg.Defaults == (api.Defaults{}) {
		cfg.Defaults = api.DefaultDefaults()
	}
	e := &Engine{svc: svc, cfg: cfg}
	slog.Info("engine initialized", "services", e.services())
	return e
}

// History returns the engine's request history.
func (e *Engine) History() *History { return &e.history }

// Documents returns the document store, or nil.
func (e *Engine) Documents() *retrieval.Store { return e.svc.Documents }

// Contexts returns the context store, or nil.
func (e *Engine) Contexts() *contextstore.Store { return e.svc.Contexts }

// Tools returns the tool registry, or nil.
func (e *Engine) Tools() *tools.Registry { return e.svc.Tools }

// Process runs req to completion and returns its response. It never
// returns nil: every failure, including validation errors, deadline expiry
// and panics, is reported as an unsuccessful response and recorded in the
// history. The caller's request is not modified.
func (e *Engine) Process(ctx context.Context, req *api.Request) *api.Response {
	start := time.Now()

	if req == nil {
		req = &api.Request{}
	}
	req = req.Clone()
	if req.ID == "" {
		req.ID = api.NewRequestID()
	}
	e.history.addRequest(req)

	resp := e.run(ctx, req)
	resp.ID = req.ID
	resp.ProcessingTime = time.Since(start)
	e.history.addResponse(resp)

	status := "success"
	if !resp.Success && resp.Error != nil {
		status = string(resp.Error.Type)
	} else if !resp.Success {
		status = "failed"
	}
	observability.RequestsTotal.WithLabelValues(string(req.Kind), status).Inc()
	observability.RequestDuration.WithLabelValues(string(req.Kind)).Observe(resp.ProcessingTime.Seconds())

	slog.Info("request processed",
		"id", req.ID,
		"kind", req.Kind,
		"success", resp.Success,
		"duration", resp.ProcessingTime,
	)
	return resp
}

func (e *Engine) run(ctx context.Context, req *api.Request) *api.Response {
	if apiErr := api.ValidateRequest(req, e.cfg.Validation); apiErr != nil {
		return api.Failure(req.ID, apiErr)
	}

	timeout := e.cfg.RequestTimeout
	perRequest, err := req.Timeout()
	if err != nil {
		return api.Failure(req.ID, api.AsAPIError(err, api.ErrorTypeInvalidRequest))
	}
	if perRequest > 0 {
		timeout = perRequest
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan *api.Response, 1)
	go func() {
		done <- e.dispatchSafe(ctx, req)
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		slog.Warn("request abandoned", "id", req.ID, "kind", req.Kind, "error", ctx.Err())
		return api.Failure(req.ID, api.AsAPIError(ctx.Err(), api.ErrorTypeProviderTimeout))
	}
}

// dispatchSafe routes req and converts a panic into a server error.
func (e *Engine) dispatchSafe(ctx context.Context, req *api.Request) (resp *api.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("request handler panicked",
				"id", req.ID,
				"kind", req.Kind,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			resp = api.Failure(req.ID, api.NewServerError(fmt.Sprintf("internal error: %v", rec)))
		}
	}()

	lokaldebug.Log("engine", "routing request", "id", req.ID, "kind", req.Kind)
	switch req.Kind {
	case api.KindGenerate:
		return e.handleGenerate(ctx, req)
	case api.KindRAGQuery:
		return e.handleRAG(ctx, req)
	case api.KindToolCall:
		return e.handleToolCall(ctx, req)
	case api.KindMultimodal:
		return e.handleMultimodal(ctx, req)
	case api.KindEnhanced:
		return e.handleEnhanced(ctx, req)
	default:
		return api.Failure(req.ID, api.NewValidationError("kind", fmt.Sprintf("unknown request kind %q", req.Kind)))
	}
}

// fail converts err into a failed response. Errors that are not already
// APIErrors are reported with fallback.
func fail(id string, err error, fallback api.ErrorType) *api.Response {
	return api.Failure(id, api.AsAPIError(err, fallback))
}

// generate calls the generator and records provider metrics.
func (e *Engine) generate(ctx context.Context, greq *provider.GenerateRequest) (*provider.GenerateResult, error) {
	if e.svc.Generator == nil {
		return nil, api.NewProviderUnavailableError("generation")
	}
	name := e.svc.Generator.Name()
	start := time.Now()
	res, err := e.svc.Generator.Generate(ctx, greq)
	observability.ProviderLatency.WithLabelValues(name, "generate").Observe(time.Since(start).Seconds())
	observability.ProviderRequestsTotal.WithLabelValues(name, "generate", observability.Status(err)).Inc()
	if err == nil && ctx.Err() != nil {
		// The provider ignored cancellation; its late result is discarded.
		err = ctx.Err()
	}
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, fmt.Errorf("generation with %s: %w", name, err)
	}
	model := res.Model
	if model == "" {
		model = greq.Model
	}
	observability.ProviderTokensTotal.WithLabelValues(name, model).Add(float64(res.TokensUsed))
	return res, nil
}

// Status reports service availability and aggregate history figures.
type Status struct {
	Initialized bool            `json:"initialized"`
	Services    map[string]bool `json:"services"`
	HistoryStats
}

// Status computes the engine status from the current history.
func (e *Engine) Status() Status {
	return Status{
		Initialized:  true,
		Services:     e.services(),
		HistoryStats: e.history.Stats(),
	}
}

func (e *Engine) services() map[string]bool {
	return map[string]bool{
		ServiceGeneration: e.svc.Generator != nil,
		ServiceRetrieval:  e.svc.Documents != nil,
		ServiceTools:      e.svc.Tools != nil,
		ServiceContexts:   e.svc.Contexts != nil,
	}
}
