//go:build !onnx

package onnx

import (
	"context"

	"github.com/oceanbase/ltm-go/pkg/embedder"
)

// Embedder is unavailable without the onnx build tag.
type Embedder struct{}

// New reports ErrNotBuilt.
func New(Config) (*Embedder, error) {
	return nil, ErrNotBuilt
}

// Embed reports ErrNotBuilt.
func (*Embedder) Embed(context.Context, string) ([]float32, error) {
	return nil, embedder.Failed("onnx", ErrNotBuilt)
}

// EmbedBatch reports ErrNotBuilt.
func (*Embedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, embedder.Failed("onnx", ErrNotBuilt)
}

// Dimensions returns 0.
func (*Embedder) Dimensions() int { return 0 }

// Close is a no-op.
func (*Embedder) Close() error { return nil }
