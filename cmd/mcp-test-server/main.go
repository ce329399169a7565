// Command mcp-test-server runs a small MCP server for trying out lokal's
// MCP bridge. It exposes "get_time", "echo" and "word_count" tools over
// streamable HTTP on /mcp. Point lokal at it with:
//
//	LOKAL_MCP_SERVERS='[{"name":"test","transport":"streamable-http","url":"http://localhost:9090/mcp"}]'
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoInput struct {
	Message string `json:"message" jsonschema:"the message to echo back"`
}

type wordCountInput struct {
	Text string `json:"text" jsonschema:"the text to count words in"`
}

type wordCountOutput struct {
	Words int `json:"words"`
	Runes int `json:"runes"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return newServer()
	}, nil))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})

	slog.Info("MCP test server starting", "addr", ":"+port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "lokal-test-mcp", Version: "v0.1.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, any, error) {
		return text(time.Now().UTC().Format(time.RFC3339)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, any, error) {
		return text("Echo: " + in.Message), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "word_count",
		Description: "Counts the words and characters in a text",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in wordCountInput) (*mcp.CallToolResult, wordCountOutput, error) {
		out := wordCountOutput{
			Words: len(strings.Fields(in.Text)),
			Runes: len([]rune(in.Text)),
		}
		return text(fmt.Sprintf("%d words, %d characters", out.Words, out.Runes)), out, nil
	})

	return server
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}
