package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/observability"
)

// Registry maps tool names to tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	if t.Parameters.Type == "" {
		t.Parameters = ObjectSchema(t.Parameters.Properties, t.Parameters.Required...)
	}

	r.mu.Lock()
	_, replaced := r.tools[t.Name]
	r.tools[t.Name] = t
	r.mu.Unlock()

	if replaced {
		slog.Warn("tool re-registered, replacing previous handler", "tool", t.Name)
		return
	}
	slog.Info("tool registered", "tool", t.Name)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the definitions of all tools, sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke runs the named tool. Errors are *api.APIError values: not_found for
// an unknown tool, invalid_request for a missing required parameter and
// provider_error when the handler fails or panics.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) (result *Result, err error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, api.NewNotFoundError(fmt.Sprintf("tool %q not found; available tools: %s",
			name, strings.Join(r.Names(), ", ")))
	}
	if params == nil {
		params = map[string]any{}
	}
	for _, req := range t.Parameters.Required {
		if v, present := params[req]; !present || v == nil {
			return nil, api.NewValidationError(req,
				fmt.Sprintf("required parameter %q missing for tool %q", req, name))
		}
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool handler panicked", "tool", name, "panic", rec)
			result = nil
			err = api.NewProviderExecutionError(fmt.Sprintf("tool %q panicked: %v", name, rec))
		}
		observability.ToolExecutionsTotal.WithLabelValues(name, observability.Status(err)).Inc()
		observability.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	debug.Log("tools", "invoking tool", "tool", name, "params", params)
	out, herr := t.Handler.Invoke(ctx, params)
	if herr != nil {
		slog.Warn("tool failed", "tool", name, "error", herr)
		return nil, api.AsAPIError(herr, api.ErrorTypeProviderError)
	}

	return &Result{Tool: name, Output: out, Duration: time.Since(start)}, nil
}
