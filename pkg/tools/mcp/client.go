package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/tools"
)

// implementation identifies lokal to MCP peers.
var implementation = &mcp.Implementation{Name: "lokal", Version: "1.0.0"}

// Client wraps an MCP SDK client session for a single server.
type Client struct {
	cfg     ServerConfig
	session *mcp.ClientSession
}

// NewClient creates a Client for cfg. Call Connect before use.
func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg}
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.cfg.Name }

// Connect performs the MCP handshake using a transport built from the
// server configuration.
func (c *Client) Connect(ctx context.Context) error {
	return c.ConnectWithTransport(ctx, nil)
}

// ConnectWithTransport performs the MCP handshake over transport. A nil
// transport is built from the server configuration.
func (c *Client) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	client := mcp.NewClient(implementation, &mcp.ClientOptions{
		Capabilities: &mcp.ClientCapabilities{},
	})

	if transport == nil {
		t, err := c.createTransport()
		if err != nil {
			return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
		}
		transport = t
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	debug.Log("mcp", "connected", "server", c.cfg.Name)
	return nil
}

func (c *Client) createTransport() (mcp.Transport, error) {
	var httpClient *http.Client
	if len(c.cfg.Headers) > 0 {
		httpClient = &http.Client{
			Transport: &headerTransport{base: http.DefaultTransport, headers: c.cfg.Headers},
		}
	}

	switch c.cfg.Transport {
	case "sse":
		return &mcp.SSEClientTransport{Endpoint: c.cfg.URL, HTTPClient: httpClient}, nil
	case "streamable-http", "":
		return &mcp.StreamableClientTransport{Endpoint: c.cfg.URL, HTTPClient: httpClient}, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// headerTransport adds static headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// ListTools returns the server's tools as local definitions. Names are not
// prefixed.
func (c *Client) ListTools(ctx context.Context) ([]tools.Definition, error) {
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var defs []tools.Definition
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		def, err := convertTool(tool)
		if err != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", tool.Name, c.cfg.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// CallTool invokes name on the server and returns its text output. A
// result flagged as an error is returned as a provider error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if c.session == nil {
		return "", fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("MCP tool call %q on %q: %w", name, c.cfg.Name, err)
	}

	output := textOf(result)
	if result.IsError {
		return "", api.NewProviderExecutionError(fmt.Sprintf("MCP tool %q failed: %s", name, output))
	}
	return output, nil
}

// Close closes the MCP session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// convertTool maps an MCP tool to a local definition. Properties whose
// schema does not fit tools.Property are kept with an empty type.
func convertTool(t *mcp.Tool) (tools.Definition, error) {
	def := tools.Definition{Name: t.Name, Description: t.Description, Parameters: tools.ObjectSchema(nil)}
	if t.InputSchema == nil {
		return def, nil
	}
	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return def, fmt.Errorf("marshaling input schema: %w", err)
	}
	var raw struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return def, fmt.Errorf("decoding input schema: %w", err)
	}
	for name, propData := range raw.Properties {
		var p tools.Property
		if err := json.Unmarshal(propData, &p); err != nil {
			p = tools.Property{}
		}
		def.Parameters.Properties[name] = p
	}
	def.Parameters.Required = raw.Required
	return def, nil
}

func textOf(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
