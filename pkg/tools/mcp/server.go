package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/tools"
)

// ServerOptions configure NewServer.
type ServerOptions struct {
	// AllowedTools limits the exposed tools. Empty exposes all.
	AllowedTools []string
}

// NewServer returns an MCP server exposing the registry's tools as they
// are registered at call time.
func NewServer(reg *tools.Registry, opts ServerOptions) (*mcp.Server, error) {
	server := mcp.NewServer(implementation, nil)

	for _, def := range tools.FilterDefinitions(reg.List(), opts.AllowedTools) {
		schema, err := schemaMap(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", def.Name, err)
		}
		server.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		}, serve(reg, def.Name))
	}
	return server, nil
}

// Handler serves server over streamable HTTP.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func serve(reg *tools.Registry, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
		}

		debug.Log("mcp", "serving tool call", "tool", name)
		res, err := reg.Invoke(ctx, name, args)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		text, err := outputText(res.Output)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func outputText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding tool output: %w", err)
	}
	return string(data), nil
}

func schemaMap(s tools.Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	return m, nil
}
