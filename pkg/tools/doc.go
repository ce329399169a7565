// Package tools provides the tool registry: named, schema-described
// capabilities the engine invokes for tool_call requests.
//
// A [Tool] pairs a [Definition] with a [Handler]. The [Registry] validates
// required parameters against the definition's schema before calling the
// handler and turns handler errors and panics into provider errors.
// Built-in tools live in tools/builtins; tools/mcp bridges the registry to
// the Model Context Protocol in both directions.
package tools
