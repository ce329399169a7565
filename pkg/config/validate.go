package config

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate checks the configuration for required fields and valid values.
// All failures are returned together, each with its field path.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 {
		add("server.port must be > 0, got %d", c.Server.Port)
	}

	if c.Engine.MaxTokens <= 0 {
		add("engine.max_tokens must be > 0, got %d", c.Engine.MaxTokens)
	}
	if c.Engine.EnhancedMaxTokens <= 0 {
		add("engine.enhanced_max_tokens must be > 0, got %d", c.Engine.EnhancedMaxTokens)
	}
	if c.Engine.Temperature < 0 || c.Engine.Temperature > 2 {
		add("engine.temperature must be between 0.0 and 2.0, got %v", c.Engine.Temperature)
	}
	if c.Engine.TopK < 0 || c.Engine.EnhancedTopK < 0 {
		add("engine.top_k and engine.enhanced_top_k must not be negative")
	}
	if c.Engine.RequestTimeout < 0 {
		add("engine.request_timeout must not be negative, got %v", c.Engine.RequestTimeout)
	}

	switch c.Generator.Type {
	case "mock", "none":
	case "openai":
		if c.Generator.BaseURL == "" {
			add("generator.base_url is required when generator.type is \"openai\"")
		}
	default:
		add("generator.type must be \"mock\", \"openai\" or \"none\", got %q", c.Generator.Type)
	}

	switch c.Embedder.Type {
	case "mock":
	case "openai":
		if c.Embedder.BaseURL == "" {
			add("embedder.base_url is required when embedder.type is \"openai\"")
		}
	default:
		add("embedder.type must be \"mock\" or \"openai\", got %q", c.Embedder.Type)
	}
	if c.Embedder.Dimensions <= 0 {
		add("embedder.dimensions must be > 0, got %d", c.Embedder.Dimensions)
	}

	switch c.Storage.Type {
	case "none":
	case "file":
		if c.Storage.File.Dir == "" {
			add("storage.file.dir is required when storage.type is \"file\"")
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			add("storage.sqlite.path is required when storage.type is \"sqlite\"")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			add("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\"")
		}
	default:
		add("storage.type must be \"none\", \"file\", \"sqlite\" or \"postgres\", got %q", c.Storage.Type)
	}

	for _, p := range append(append([]string{}, c.Ingest.Include...), c.Ingest.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			add("ingest pattern %q is invalid", p)
		}
	}
	if (c.Ingest.Watch || c.Ingest.OnStart) && c.Ingest.Dir == "" {
		add("ingest.dir is required when ingest.watch or ingest.on_start is set")
	}
	if c.Ingest.ChunkSentences < 0 || c.Ingest.ChunkOverlap < 0 {
		add("ingest.chunk_sentences and ingest.chunk_overlap must not be negative")
	}

	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			add("mcp.servers[%d].name is required", i)
		}
		if s.URL == "" {
			add("mcp.servers[%d].url is required", i)
		}
		switch s.Transport {
		case "", "sse", "streamable-http":
		default:
			add("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport)
		}
	}

	return errors.Join(errs...)
}
