package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oceanbase/ltm-go/pkg/embedder"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = openai.SmallEmbedding3

// modelDimensions lists the native output size of known models.
var modelDimensions = map[openai.EmbeddingModel]int{
	openai.AdaEmbeddingV2:  1536,
	openai.SmallEmbedding3: 1536,
	openai.LargeEmbedding3: 3072,
}

// Client is an OpenAI Embedder client.
// It implements the embedder.Provider interface and provides text vectorization functionality based on the OpenAI Embeddings API.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int

	// shorten asks text-embedding-3 models to truncate their output.
	shorten bool
}

// Config is the configuration for OpenAI Embedder.
// APIKey: OpenAI API key (required unless BaseURL points at a compatible server)
// Model: Model name, defaults to text-embedding-3-small
// BaseURL: API base URL, defaults to OpenAI official address
// Dimensions: Vector dimensions, defaults to the model's native size
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// NewClient creates a new OpenAI Embedder client.
//
// Args:
//   - cfg: OpenAI Embedder configuration containing APIKey, Model, BaseURL, Dimensions, etc.
//
// Returns:
//   - *Client: OpenAI Embedder client instance
//   - error: Returns an error if the configuration is invalid
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	native, known := modelDimensions[model]
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		if !known {
			return nil, fmt.Errorf("dimensions required for unknown model %q", model)
		}
		dimensions = native
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
		shorten:    known && model != openai.AdaEmbeddingV2 && dimensions != native,
	}, nil
}

func (c *Client) request(input []string) openai.EmbeddingRequest {
	req := openai.EmbeddingRequest{
		Input: input,
		Model: c.model,
	}
	if c.shorten {
		req.Dimensions = c.dimensions
	}
	return req
}

// Embed converts a single text to a vector.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - text: Text content to vectorize
//
// Returns:
//   - []float32: Vector representation of the text (dimension determined by configuration)
//   - error: Returns an error wrapping embedder.ErrEmbeddingFailed if vectorization fails
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedder.CheckText(text); err != nil {
		return nil, err
	}

	resp, err := c.client.CreateEmbeddings(ctx, c.request([]string{text}))
	if err != nil {
		return nil, embedder.Failed("openai", err)
	}

	if len(resp.Data) == 0 {
		return nil, embedder.Failed("openai", errors.New("no data returned from OpenAI API"))
	}

	vec := resp.Data[0].Embedding
	if err := embedder.CheckDimensions(vec, c.dimensions); err != nil {
		return nil, embedder.Failed("openai", err)
	}
	return vec, nil
}

// EmbedBatch converts multiple texts to vectors in batch.
//
// Returns:
//   - [][]float32: Vector representation for each text (order matches input texts)
//   - error: Returns an error if vectorization fails or the number of returned results doesn't match
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if err := embedder.CheckText(text); err != nil {
			return nil, err
		}
	}

	resp, err := c.client.CreateEmbeddings(ctx, c.request(texts))
	if err != nil {
		return nil, embedder.Failed("openai", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, embedder.Failed("openai", fmt.Errorf("unexpected number of results from OpenAI API (got %d, expected %d)", len(resp.Data), len(texts)))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, embedder.Failed("openai", fmt.Errorf("result index %d out of range", data.Index))
		}
		if err := embedder.CheckDimensions(data.Embedding, c.dimensions); err != nil {
			return nil, embedder.Failed("openai", err)
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the client connection.
// The OpenAI SDK client does not require explicit closing; this method is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}
