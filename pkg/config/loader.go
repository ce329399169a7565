package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env file (LOKAL_ENV_FILE or ./.env), never overriding set variables
//  3. YAML config file (explicit path, LOKAL_CONFIG env, ./config.yaml, /etc/lokal/config.yaml)
//  4. LOKAL_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads LOKAL_ENV_FILE, or ./.env when present. A missing
// default file is not an error; a missing explicit file is.
func loadDotEnv() error {
	if path := os.Getenv("LOKAL_ENV_FILE"); path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load(".env")
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. LOKAL_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/lokal/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("LOKAL_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/lokal/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps LOKAL_* environment variables to config fields.
// Every malformed value is reported.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	num("LOKAL_PORT", &cfg.Server.Port)

	str("LOKAL_MODEL", &cfg.Engine.DefaultModel)
	dur("LOKAL_REQUEST_TIMEOUT", &cfg.Engine.RequestTimeout)
	flag("LOKAL_RAG_GENERATE", &cfg.Engine.RAGGenerate)
	flag("LOKAL_SAMPLE_DATA", &cfg.Engine.SampleData)

	str("LOKAL_GENERATOR", &cfg.Generator.Type)
	str("LOKAL_GENERATOR_URL", &cfg.Generator.BaseURL)
	str("LOKAL_GENERATOR_API_KEY", &cfg.Generator.APIKey)
	str("LOKAL_GENERATOR_MODEL", &cfg.Generator.Model)

	str("LOKAL_EMBEDDER", &cfg.Embedder.Type)
	str("LOKAL_EMBEDDER_URL", &cfg.Embedder.BaseURL)
	str("LOKAL_EMBEDDER_API_KEY", &cfg.Embedder.APIKey)
	str("LOKAL_EMBEDDER_MODEL", &cfg.Embedder.Model)
	num("LOKAL_EMBEDDER_DIMENSIONS", &cfg.Embedder.Dimensions)

	str("LOKAL_STORAGE", &cfg.Storage.Type)
	str("LOKAL_NAMESPACE", &cfg.Storage.Namespace)
	str("LOKAL_DATA_DIR", &cfg.Storage.File.Dir)
	str("LOKAL_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	str("LOKAL_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)

	str("LOKAL_INGEST_DIR", &cfg.Ingest.Dir)
	list("LOKAL_INGEST_INCLUDE", &cfg.Ingest.Include)
	list("LOKAL_INGEST_EXCLUDE", &cfg.Ingest.Exclude)
	num("LOKAL_INGEST_CHUNK_SENTENCES", &cfg.Ingest.ChunkSentences)
	flag("LOKAL_INGEST_WATCH", &cfg.Ingest.Watch)

	str("LOKAL_FILE_ROOT", &cfg.Tools.FileRoot)
	flag("LOKAL_METRICS", &cfg.Observability.Metrics.Enabled)

	// LOKAL_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("LOKAL_MCP_SERVERS"); v != "" {
		servers, err := parseMCPServersJSON(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOKAL_MCP_SERVERS: %w", err))
		} else if len(servers) > 0 {
			cfg.MCP.Servers = servers
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseMCPServersJSON parses a JSON array of MCP server configurations.
func parseMCPServersJSON(jsonStr string) ([]MCPServerConfig, error) {
	var servers []MCPServerConfig
	if err := json.Unmarshal([]byte(jsonStr), &servers); err != nil {
		return nil, fmt.Errorf("parsing MCP servers JSON: %w", err)
	}
	return servers, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"generator.api_key_file", cfg.Generator.APIKeyFile, &cfg.Generator.APIKey},
		{"embedder.api_key_file", cfg.Embedder.APIKeyFile, &cfg.Embedder.APIKey},
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
	}
	for _, r := range refs {
		if r.file == "" || *r.value != "" {
			continue
		}
		val, err := readSecretFile(r.file)
		if err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
		*r.value = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
