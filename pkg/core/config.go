package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLimit is the number of memories recalled per query.
	DefaultLimit = 5

	// DefaultMinTextLength is the shortest turn ingestion adapters and hosts forward.
	DefaultMinTextLength = 10

	// DefaultEmbedTimeout bounds a single embedding call.
	DefaultEmbedTimeout = 30 * time.Second

	// DefaultStoreTimeout bounds a single vector store call.
	DefaultStoreTimeout = 10 * time.Second
)

// Supported provider names.
var (
	embedderProviders    = []string{"local", "openai", "qwen", "ollama", "onnx"}
	vectorStoreProviders = []string{"qdrant", "chromem", "sqlite", "postgres", "oceanbase"}
)

// Config contains the complete configuration for a memory engine.
//
// Example:
//
//	config := &core.Config{
//	    Collection: "alice_and_bot",
//	    Limit:      5,
//	    Embedder: core.EmbedderConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	        Model:    "text-embedding-3-small",
//	    },
//	    VectorStore: core.VectorStoreConfig{
//	        Provider: "qdrant",
//	        Config: map[string]interface{}{
//	            "address": "localhost:6334",
//	        },
//	    },
//	}
type Config struct {
	// Collection is the namespace memories are stored in (required).
	Collection string `json:"collection" yaml:"collection"`

	// Limit is the number of memories returned by a recall.
	Limit int `json:"limit" yaml:"limit"`

	// Verbose enables diagnostic logging of search results.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// MinTextLength is the shortest turn hosts and importers forward to the engine.
	// The engine itself stores whatever it is given.
	MinTextLength int `json:"min_text_length" yaml:"min_text_length"`

	// EmbedWorkers bounds concurrent embedding computations (default: number of CPUs).
	EmbedWorkers int `json:"embed_workers,omitempty" yaml:"embed_workers,omitempty"`

	// EmbedTimeout bounds each embedding call (default: 30s).
	EmbedTimeout Duration `json:"embed_timeout,omitempty" yaml:"embed_timeout,omitempty"`

	// StoreTimeout bounds each vector store call (default: 10s).
	StoreTimeout Duration `json:"store_timeout,omitempty" yaml:"store_timeout,omitempty"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`

	// VectorStore contains vector store configuration.
	VectorStore VectorStoreConfig `json:"vector_store" yaml:"vector_store"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: local, openai, qwen, ollama, onnx
//
// Example:
//
//	embedderConfig := core.EmbedderConfig{
//	    Provider:   "ollama",
//	    Model:      "nomic-embed-text",
//	    BaseURL:    "http://localhost:11434",
//	}
type EmbedderConfig struct {
	// Provider is the embedding provider name.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for hosted providers.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model is the embedding model name (e.g., "text-embedding-3-small", "nomic-embed-text").
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (provider default if zero).
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`

	// CacheSize enables an in-memory cache of that many embeddings when positive.
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`

	// Parameters contains provider-specific parameters.
	// For ONNX: model_path, tokenizer_path, library_path
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// VectorStoreConfig contains configuration for the vector store.
//
// Supported providers: qdrant, chromem, sqlite, postgres, oceanbase
type VectorStoreConfig struct {
	// Provider is the vector store provider name.
	Provider string `json:"provider" yaml:"provider"`

	// Config contains provider-specific configuration.
	// For Qdrant: address, api_key, use_tls
	// For chromem: path, compress
	// For SQLite: db_path
	// For PostgreSQL: host, port, user, password, db_name, ssl_mode
	// For OceanBase: host, port, user, password, db_name
	Config map[string]interface{} `json:"config" yaml:"config"`
}

// Duration is a time.Duration that reads "30s"-style strings from JSON and YAML.
type Duration time.Duration

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a configuration using the local embedder and a Qdrant
// server on localhost. Collection must still be set.
func DefaultConfig() *Config {
	return &Config{
		Limit:         DefaultLimit,
		MinTextLength: DefaultMinTextLength,
		EmbedWorkers:  runtime.NumCPU(),
		EmbedTimeout:  Duration(DefaultEmbedTimeout),
		StoreTimeout:  Duration(DefaultStoreTimeout),
		Embedder: EmbedderConfig{
			Provider: "local",
		},
		VectorStore: VectorStoreConfig{
			Provider: "qdrant",
			Config: map[string]interface{}{
				"address": "localhost:6334",
			},
		},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - LTM_COLLECTION, LTM_LIMIT, LTM_VERBOSE, LTM_MIN_TEXT_LENGTH
//   - LTM_EMBED_WORKERS, LTM_EMBED_TIMEOUT, LTM_STORE_TIMEOUT
//   - DATABASE_PROVIDER (qdrant, chromem, sqlite, postgres, oceanbase)
//   - QDRANT_ADDRESS, QDRANT_API_KEY, QDRANT_USE_TLS
//   - CHROMEM_PATH, CHROMEM_COMPRESS
//   - SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, OCEANBASE_DATABASE
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS, EMBEDDING_CACHE_SIZE
//   - ONNX_MODEL_PATH, ONNX_TOKENIZER_PATH, ONNX_LIBRARY_PATH
//
// Returns a Config instance, or an error if a variable cannot be parsed.
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	return configFromEnv()
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Variables already set in the process environment take precedence.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, NewMemoryError("LoadConfigFromEnvFile", err)
	}
	return configFromEnv()
}

func configFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	cfg.Collection = os.Getenv("LTM_COLLECTION")

	var err error
	if cfg.Limit, err = envInt("LTM_LIMIT", cfg.Limit); err != nil {
		return nil, err
	}
	if cfg.MinTextLength, err = envInt("LTM_MIN_TEXT_LENGTH", cfg.MinTextLength); err != nil {
		return nil, err
	}
	if cfg.EmbedWorkers, err = envInt("LTM_EMBED_WORKERS", cfg.EmbedWorkers); err != nil {
		return nil, err
	}
	if cfg.Verbose, err = envBool("LTM_VERBOSE", false); err != nil {
		return nil, err
	}
	if cfg.EmbedTimeout, err = envDuration("LTM_EMBED_TIMEOUT", cfg.EmbedTimeout); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = envDuration("LTM_STORE_TIMEOUT", cfg.StoreTimeout); err != nil {
		return nil, err
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "qdrant")
	storeConfig := make(map[string]interface{})

	switch provider {
	case "qdrant":
		useTLS, err := envBool("QDRANT_USE_TLS", false)
		if err != nil {
			return nil, err
		}
		storeConfig = map[string]interface{}{
			"address": getEnvOrDefault("QDRANT_ADDRESS", "localhost:6334"),
			"api_key": os.Getenv("QDRANT_API_KEY"),
			"use_tls": useTLS,
		}
	case "chromem":
		compress, err := envBool("CHROMEM_COMPRESS", false)
		if err != nil {
			return nil, err
		}
		storeConfig = map[string]interface{}{
			"path":     os.Getenv("CHROMEM_PATH"),
			"compress": compress,
		}
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path": getEnvOrDefault("SQLITE_PATH", "./ltm.db"),
		}
	case "postgres":
		port, err := envInt("POSTGRES_PORT", 5432)
		if err != nil {
			return nil, err
		}
		storeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":     port,
			"user":     getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password": os.Getenv("POSTGRES_PASSWORD"),
			"db_name":  getEnvOrDefault("POSTGRES_DATABASE", "ltm"),
			"ssl_mode": getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "oceanbase":
		port, err := envInt("OCEANBASE_PORT", 2881)
		if err != nil {
			return nil, err
		}
		storeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			"port":     port,
			"user":     getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			"password": os.Getenv("OCEANBASE_PASSWORD"),
			"db_name":  getEnvOrDefault("OCEANBASE_DATABASE", "ltm"),
		}
	}
	cfg.VectorStore = VectorStoreConfig{Provider: provider, Config: storeConfig}

	dims, err := envInt("EMBEDDING_DIMS", 0)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("EMBEDDING_CACHE_SIZE", 0)
	if err != nil {
		return nil, err
	}
	cfg.Embedder = EmbedderConfig{
		Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", "local"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
		Dimensions: dims,
		CacheSize:  cacheSize,
	}
	if cfg.Embedder.Provider == "onnx" {
		cfg.Embedder.Parameters = map[string]interface{}{
			"model_path":     os.Getenv("ONNX_MODEL_PATH"),
			"tokenizer_path": os.Getenv("ONNX_TOKENIZER_PATH"),
			"library_path":   os.Getenv("ONNX_LIBRARY_PATH"),
		}
	}

	return cfg, nil
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Fields missing from the file keep their DefaultConfig values.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// LoadConfigFromYAML loads configuration from a YAML file.
//
// Fields missing from the file keep their DefaultConfig values.
func LoadConfigFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromYAML", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, NewMemoryError("LoadConfigFromYAML", err)
	}

	return config, nil
}

// LoadConfigFile loads a JSON or YAML file, chosen by extension.
func LoadConfigFile(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadConfigFromJSON(path)
	case ".yaml", ".yml":
		return LoadConfigFromYAML(path)
	default:
		return nil, NewMemoryError("LoadConfigFile", fmt.Errorf("%w: unsupported config file %q", ErrInvalidConfig, path))
	}
}

// Validate validates the configuration.
//
// Checks that:
//   - Collection is set
//   - Limit is at least 1
//   - Embedder and vector store providers are supported
//   - Worker counts and timeouts are not negative
//
// Returns an error wrapping ErrInvalidConfig if validation fails, nil otherwise.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Collection) == "":
		return NewMemoryError("Validate", fmt.Errorf("%w: collection is required", ErrInvalidConfig))
	case c.Limit < 1:
		return NewMemoryError("Validate", fmt.Errorf("%w: limit must be at least 1, got %d", ErrInvalidConfig, c.Limit))
	case !contains(embedderProviders, c.Embedder.Provider):
		return NewMemoryError("Validate", fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, c.Embedder.Provider))
	case !contains(vectorStoreProviders, c.VectorStore.Provider):
		return NewMemoryError("Validate", fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, c.VectorStore.Provider))
	case c.Embedder.Dimensions < 0:
		return NewMemoryError("Validate", fmt.Errorf("%w: negative embedding dimensions", ErrInvalidConfig))
	case c.EmbedWorkers < 0 || c.EmbedTimeout < 0 || c.StoreTimeout < 0 || c.MinTextLength < 0:
		return NewMemoryError("Validate", fmt.Errorf("%w: negative worker count, timeout or length", ErrInvalidConfig))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, NewMemoryError("LoadConfigFromEnv", fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v))
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, NewMemoryError("LoadConfigFromEnv", fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v))
	}
	return b, nil
}

func envDuration(key string, def Duration) (Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, NewMemoryError("LoadConfigFromEnv", fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v))
	}
	return Duration(d), nil
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	// First check the current directory
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	// Check project root directory (search upward)
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
