package core

import (
	"fmt"

	"github.com/oceanbase/ltm-go/pkg/embedder"
	"github.com/oceanbase/ltm-go/pkg/embedder/cached"
	localEmbedder "github.com/oceanbase/ltm-go/pkg/embedder/local"
	ollamaEmbedder "github.com/oceanbase/ltm-go/pkg/embedder/ollama"
	onnxEmbedder "github.com/oceanbase/ltm-go/pkg/embedder/onnx"
	openaiEmbedder "github.com/oceanbase/ltm-go/pkg/embedder/openai"
	qwenEmbedder "github.com/oceanbase/ltm-go/pkg/embedder/qwen"
	"github.com/oceanbase/ltm-go/pkg/storage"
	chromemStore "github.com/oceanbase/ltm-go/pkg/storage/chromem"
	"github.com/oceanbase/ltm-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/ltm-go/pkg/storage/postgres"
	qdrantStore "github.com/oceanbase/ltm-go/pkg/storage/qdrant"
	sqliteStore "github.com/oceanbase/ltm-go/pkg/storage/sqlite"
)

// String returns a string option from the provider config, or def.
func (c VectorStoreConfig) String(key, def string) string {
	if v, ok := c.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns an integer option from the provider config, or def.
// JSON numbers arrive as float64 and are accepted.
func (c VectorStoreConfig) Int(key string, def int) int {
	switch v := c.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns a boolean option from the provider config, or def.
func (c VectorStoreConfig) Bool(key string, def bool) bool {
	if v, ok := c.Config[key].(bool); ok {
		return v
	}
	return def
}

// initStorage initializes the vector store.
func initStorage(cfg VectorStoreConfig) (storage.VectorStore, error) {
	switch cfg.Provider {
	case "qdrant":
		return qdrantStore.NewClient(&qdrantStore.Config{
			Address: cfg.String("address", qdrantStore.DefaultAddress),
			APIKey:  cfg.String("api_key", ""),
			UseTLS:  cfg.Bool("use_tls", false),
		})
	case "chromem":
		return chromemStore.New(&chromemStore.Config{
			Path:     cfg.String("path", ""),
			Compress: cfg.Bool("compress", false),
		})
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath: cfg.String("db_path", "./ltm.db"),
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:     cfg.String("host", "localhost"),
			Port:     cfg.Int("port", 5432),
			User:     cfg.String("user", "postgres"),
			Password: cfg.String("password", ""),
			DBName:   cfg.String("db_name", "ltm"),
			SSLMode:  cfg.String("ssl_mode", "disable"),
		})
	case "oceanbase":
		return oceanbase.NewClient(&oceanbase.Config{
			Host:     cfg.String("host", "127.0.0.1"),
			Port:     cfg.Int("port", 2881),
			User:     cfg.String("user", "root@sys"),
			Password: cfg.String("password", ""),
			DBName:   cfg.String("db_name", "ltm"),
		})
	default:
		return nil, NewMemoryError("initStorage", fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// initEmbedder initializes the embedding provider, wrapped in a cache when
// CacheSize is positive.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	provider, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize <= 0 {
		return provider, nil
	}

	c, err := cached.New(provider, cached.Config{MaxEntries: int64(cfg.CacheSize)})
	if err != nil {
		_ = provider.Close()
		return nil, NewMemoryError("initEmbedder", err)
	}
	return c, nil
}

func newEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "local", "":
		return localEmbedder.New(localEmbedder.Config{Dimensions: cfg.Dimensions}), nil
	case "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "qwen":
		return qwenEmbedder.NewClient(&qwenEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "ollama":
		return ollamaEmbedder.NewClient(&ollamaEmbedder.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "onnx":
		param := func(key string) string {
			s, _ := cfg.Parameters[key].(string)
			return s
		}
		return onnxEmbedder.New(onnxEmbedder.Config{
			ModelPath:     param("model_path"),
			TokenizerPath: param("tokenizer_path"),
			LibraryPath:   param("library_path"),
			Dimensions:    cfg.Dimensions,
		})
	default:
		return nil, NewMemoryError("initEmbedder", fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, cfg.Provider))
	}
}
