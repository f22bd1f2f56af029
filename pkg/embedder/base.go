// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must satisfy,
// enabling text-to-vector conversion for similarity search.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrEmbeddingFailed indicates that a text could not be embedded, either
	// because the input was unusable or the model was unavailable.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrEmptyText indicates an empty or whitespace-only input text.
	ErrEmptyText = fmt.Errorf("%w: empty text", ErrEmbeddingFailed)
)

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI, Qwen, Ollama, local, ONNX) must implement this interface.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// This method is more efficient than calling Embed multiple times,
	// as it can batch process requests.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimension of embedding vectors produced by this provider.
	//
	// For example, OpenAI's text-embedding-3-small produces 1536-dimensional vectors.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}

// CheckText rejects texts a provider must not embed.
func CheckText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

// Failed wraps err with ErrEmbeddingFailed unless it already carries it.
func Failed(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEmbeddingFailed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrEmbeddingFailed, err)
}

// CheckDimensions fails when a provider returned a vector of the wrong length.
func CheckDimensions(vec []float32, want int) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d dimensions, expected %d", ErrEmbeddingFailed, len(vec), want)
	}
	return nil
}

// Normalize scales vec to unit length in place and returns it.
// Zero vectors are returned unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// EmbedEach implements EmbedBatch on top of a single-text embed function.
func EmbedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
