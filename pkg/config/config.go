// Package config provides unified configuration for lokal.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. Optional .env file (LOKAL_ENV_FILE or ./.env)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (LOKAL_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for lokal.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Generator     GeneratorConfig     `yaml:"generator"`
	Embedder      EmbedderConfig      `yaml:"embedder"`
	Storage       StorageConfig       `yaml:"storage"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Tools         ToolsConfig         `yaml:"tools"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// EngineConfig holds request defaults and orchestration settings.
type EngineConfig struct {
	DefaultModel      string        `yaml:"default_model"`       // default: "default"
	MaxTokens         int           `yaml:"max_tokens"`          // default: 500
	EnhancedMaxTokens int           `yaml:"enhanced_max_tokens"` // default: 800
	Temperature       float64       `yaml:"temperature"`         // default: 0.7
	TopK              int           `yaml:"top_k"`               // default: 5
	EnhancedTopK      int           `yaml:"enhanced_top_k"`      // default: 3
	ContextDocuments  int           `yaml:"context_documents"`   // default: 2
	RequestTimeout    time.Duration `yaml:"request_timeout"`     // default: 60s, 0 disables
	RAGGenerate       bool          `yaml:"rag_generate"`
	MaxPromptSize     int           `yaml:"max_prompt_size"` // default: 1 MiB
	SampleData        bool          `yaml:"sample_data"`     // load sample data at startup
}

// GeneratorConfig selects the text generation backend.
type GeneratorConfig struct {
	Type       string        `yaml:"type"`         // "mock", "openai" or "none", default: "mock"
	BaseURL    string        `yaml:"base_url"`     // required for openai
	APIKey     string        `yaml:"api_key"`      // optional
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`        // backend model for "default"
	Timeout    time.Duration `yaml:"timeout"`      // default: 120s
}

// EmbedderConfig selects the embedding backend.
type EmbedderConfig struct {
	Type       string        `yaml:"type"`       // "mock" or "openai", default: "mock"
	Dimensions int           `yaml:"dimensions"` // default: 384
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	APIKeyFile string        `yaml:"api_key_file"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"` // default: 60s
}

// StorageConfig selects where documents and contexts are persisted.
type StorageConfig struct {
	Type      string         `yaml:"type"`      // "none", "file", "sqlite" or "postgres", default: "file"
	Namespace string         `yaml:"namespace"` // default: "default"
	File      FileConfig     `yaml:"file"`
	SQLite    SQLiteConfig   `yaml:"sqlite"`
	Postgres  PostgresConfig `yaml:"postgres"`
}

// FileConfig holds JSON file storage settings.
type FileConfig struct {
	Dir string `yaml:"dir"` // default: "./data"
}

// SQLiteConfig holds embedded SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "./data/lokal.db"
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// IngestConfig controls loading documents from a directory.
type IngestConfig struct {
	Dir            string        `yaml:"dir"`
	Include        []string      `yaml:"include"`
	Exclude        []string      `yaml:"exclude"`
	ChunkSentences int           `yaml:"chunk_sentences"` // 0 stores whole files
	ChunkOverlap   int           `yaml:"chunk_overlap"`
	Concurrency    int           `yaml:"concurrency"` // default: 4
	OnStart        bool          `yaml:"on_start"`    // ingest dir when the server starts
	Watch          bool          `yaml:"watch"`
	Debounce       time.Duration `yaml:"debounce"` // default: 250ms
}

// ToolsConfig holds built-in tool settings.
type ToolsConfig struct {
	FileRoot    string `yaml:"file_root"`     // restricts read_file when set
	MaxFileSize int64  `yaml:"max_file_size"` // default: 1 MiB
}

// MCPConfig holds MCP (Model Context Protocol) client and server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
	Serve   MCPServeConfig    `yaml:"serve"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name       string            `yaml:"name" json:"name"`
	Transport  string            `yaml:"transport" json:"transport"` // "sse" or "streamable-http"
	URL        string            `yaml:"url" json:"url"`
	Headers    map[string]string `yaml:"headers" json:"headers,omitempty"`
	ToolPrefix string            `yaml:"tool_prefix" json:"tool_prefix,omitempty"`
}

// MCPServeConfig controls exposing the tool registry as an MCP server.
type MCPServeConfig struct {
	Enabled      bool     `yaml:"enabled"` // default: true
	Path         string   `yaml:"path"`    // default: "/mcp"
	AllowedTools []string `yaml:"allowed_tools"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log level and debug categories. LOKAL_LOG_LEVEL and
// LOKAL_DEBUG take precedence.
type LoggingConfig struct {
	Level string `yaml:"level"` // default: "INFO"
	Debug string `yaml:"debug"` // comma separated categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			DefaultModel:      "default",
			MaxTokens:         500,
			EnhancedMaxTokens: 800,
			Temperature:       0.7,
			TopK:              5,
			EnhancedTopK:      3,
			ContextDocuments:  2,
			RequestTimeout:    60 * time.Second,
			MaxPromptSize:     1 << 20,
		},
		Generator: GeneratorConfig{
			Type:    "mock",
			Timeout: 120 * time.Second,
		},
		Embedder: EmbedderConfig{
			Type:       "mock",
			Dimensions: 384,
			Timeout:    60 * time.Second,
		},
		Storage: StorageConfig{
			Type:      "file",
			Namespace: "default",
			File:      FileConfig{Dir: "./data"},
			SQLite:    SQLiteConfig{Path: "./data/lokal.db"},
			Postgres: PostgresConfig{
				MaxConns:       25,
				MigrateOnStart: true,
			},
		},
		Ingest: IngestConfig{
			Concurrency: 4,
			Debounce:    250 * time.Millisecond,
		},
		Tools: ToolsConfig{
			MaxFileSize: 1 << 20,
		},
		MCP: MCPConfig{
			Serve: MCPServeConfig{
				Enabled: true,
				Path:    "/mcp",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}
