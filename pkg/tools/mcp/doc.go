// Package mcp bridges the tool registry and the Model Context Protocol.
//
// In the outbound direction a [Client] connects to a remote MCP server and
// a [Bridge] registers every tool the server lists as a local tool whose
// handler forwards the call. In the inbound direction [NewServer] exposes
// the registry's tools to MCP clients, and [Handler] serves them over
// streamable HTTP.
//
// The package wraps the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
package mcp
