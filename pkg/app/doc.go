// Package app assembles a running lokal instance from configuration.
//
// [New] builds the persister, the generation and embedding providers, the
// document and context stores, the tool registry (built-in tools plus tools
// imported from MCP servers), the engine and the optional ingester. Both the
// HTTP server and the CLI use it so they behave the same for a given
// configuration.
package app
