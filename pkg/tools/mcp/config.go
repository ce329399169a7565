package mcp

// Config holds the configuration for all MCP server connections.
type Config struct {
	// Servers is the list of MCP server configurations to connect to.
	Servers []ServerConfig `yaml:"servers"`
}

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name identifies the server in logs and tool metadata.
	Name string `yaml:"name" json:"name"`

	// Transport is "sse" or "streamable-http" (the default).
	Transport string `yaml:"transport" json:"transport"`

	// URL is the MCP server endpoint URL.
	URL string `yaml:"url" json:"url"`

	// Headers are sent with every request, typically for API keys.
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	// ToolPrefix is prepended to every imported tool name.
	ToolPrefix string `yaml:"tool_prefix" json:"tool_prefix,omitempty"`
}
