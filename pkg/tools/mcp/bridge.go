package mcp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rhuss/lokal/pkg/tools"
)

// Bridge owns a set of connected clients and registers their tools.
type Bridge struct {
	mu      sync.Mutex
	clients []*Client
	tools   map[string]string
}

// NewBridge creates a Bridge over connected clients.
func NewBridge(clients ...*Client) *Bridge {
	return &Bridge{clients: clients, tools: make(map[string]string)}
}

// Connect dials every configured server and returns a Bridge over the ones
// that answered. Servers that fail are logged and skipped.
func Connect(ctx context.Context, cfg Config) *Bridge {
	b := NewBridge()
	for _, sc := range cfg.Servers {
		c := NewClient(sc)
		if err := c.Connect(ctx); err != nil {
			slog.Error("MCP server unavailable", "server", sc.Name, "url", sc.URL, "error", err)
			continue
		}
		b.clients = append(b.clients, c)
	}
	return b
}

// Register lists every client's tools and registers a forwarding tool for
// each in reg. It returns the number of tools registered. A server whose
// listing fails is logged and skipped.
func (b *Bridge) Register(ctx context.Context, reg *tools.Registry) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, c := range b.clients {
		defs, err := c.ListTools(ctx)
		if err != nil {
			slog.Error("failed to discover tools from MCP server", "server", c.Name(), "error", err)
			continue
		}
		for _, def := range defs {
			remote := def.Name
			def.Name = c.cfg.ToolPrefix + remote
			if owner, dup := b.tools[def.Name]; dup && owner != c.Name() {
				slog.Warn("duplicate MCP tool name, last server wins",
					"tool", def.Name, "previous", owner, "server", c.Name())
			}
			b.tools[def.Name] = c.Name()
			reg.Register(tools.Tool{Definition: def, Handler: forward(c, remote)})
			count++
		}
		slog.Info("imported MCP tools", "server", c.Name(), "count", len(defs))
	}
	return count
}

// Tools maps each imported tool name to the server that provides it.
func (b *Bridge) Tools() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.tools))
	for k, v := range b.tools {
		out[k] = v
	}
	return out
}

// Close closes all client sessions, returning the last error.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var lastErr error
	for _, c := range b.clients {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", c.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func forward(c *Client, remote string) tools.Handler {
	return tools.HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
		return c.CallTool(ctx, remote, params)
	})
}
