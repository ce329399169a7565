package tools

import (
	"context"
	"time"
)

// Handler executes a tool. params has already been checked for the
// schema's required keys.
type Handler interface {
	Invoke(ctx context.Context, params map[string]any) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, params map[string]any) (any, error) {
	return f(ctx, params)
}

// Property describes one parameter in a Schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Schema is the JSON Schema object describing a tool's parameters.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ObjectSchema builds an object Schema.
func ObjectSchema(props map[string]Property, required ...string) Schema {
	if props == nil {
		props = map[string]Property{}
	}
	return Schema{Type: "object", Properties: props, Required: required}
}

// Definition is the public description of a tool.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Tool is a registered tool.
type Tool struct {
	Definition
	Handler Handler
}

// Result is the outcome of a successful invocation.
type Result struct {
	Tool     string        `json:"tool"`
	Output   any           `json:"result"`
	Duration time.Duration `json:"-"`
}
