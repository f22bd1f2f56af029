// Package ollama provides an embedder.Provider backed by a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/oceanbase/ltm-go/pkg/embedder"
)

const (
	// DefaultBaseURL is where a local Ollama listens.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "nomic-embed-text"
)

// modelDimensions lists the output size of common embedding models.
var modelDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
	"bge-m3":                 1024,
}

// Client embeds text with an Ollama embedding model.
type Client struct {
	client     *api.Client
	model      string
	dimensions int
}

// Config contains Ollama embedder configuration.
type Config struct {
	// BaseURL is the Ollama server address (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model name (default: nomic-embed-text).
	Model string

	// Dimensions is required for models not in the built-in table.
	Dimensions int

	// HTTPClient is a custom HTTP client (uses http.DefaultClient if nil).
	HTTPClient *http.Client
}

// NewClient creates a new Ollama embedder.
func NewClient(cfg *Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		d, ok := modelDimensions[model]
		if !ok {
			return nil, fmt.Errorf("dimensions required for unknown model %q", model)
		}
		dimensions = d
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		client:     api.NewClient(uri, httpClient),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedder.CheckText(text); err != nil {
		return nil, err
	}

	resp, err := c.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  c.model,
		Prompt: text,
	})
	if err != nil {
		return nil, embedder.Failed("ollama", err)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	if err := embedder.CheckDimensions(vec, c.dimensions); err != nil {
		return nil, embedder.Failed("ollama", err)
	}
	return vec, nil
}

// EmbedBatch embeds texts with a single /api/embed call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if err := embedder.CheckText(text); err != nil {
			return nil, err
		}
	}

	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.model,
		Input: texts,
	})
	if err != nil {
		return nil, embedder.Failed("ollama", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, embedder.Failed("ollama", fmt.Errorf("unexpected number of results (got %d, expected %d)", len(resp.Embeddings), len(texts)))
	}
	for _, vec := range resp.Embeddings {
		if err := embedder.CheckDimensions(vec, c.dimensions); err != nil {
			return nil, embedder.Failed("ollama", err)
		}
	}

	return resp.Embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the HTTP client is shared.
func (c *Client) Close() error {
	return nil
}
