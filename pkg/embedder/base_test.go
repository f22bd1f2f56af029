package embedder_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/embedder"
)

func TestCheckText(t *testing.T) {
	assert.NoError(t, embedder.CheckText("hello"))

	for _, text := range []string{"", "   ", "\n\t"} {
		err := embedder.CheckText(text)
		assert.ErrorIs(t, err, embedder.ErrEmptyText)
		assert.ErrorIs(t, err, embedder.ErrEmbeddingFailed)
	}
}

func TestFailed(t *testing.T) {
	assert.NoError(t, embedder.Failed("op", nil))

	cause := errors.New("connection refused")
	err := embedder.Failed("openai", cause)
	assert.ErrorIs(t, err, embedder.ErrEmbeddingFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "openai")

	// already classified errors are not double-wrapped
	again := embedder.Failed("outer", embedder.ErrEmptyText)
	assert.Equal(t, "outer: embedding failed: empty text", again.Error())
}

func TestCheckDimensions(t *testing.T) {
	assert.NoError(t, embedder.CheckDimensions([]float32{1, 2, 3}, 3))
	assert.NoError(t, embedder.CheckDimensions([]float32{1, 2, 3}, 0))
	assert.ErrorIs(t, embedder.CheckDimensions([]float32{1, 2}, 3), embedder.ErrEmbeddingFailed)
}

func TestNormalize(t *testing.T) {
	vec := embedder.Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	zero := embedder.Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestEmbedEach(t *testing.T) {
	calls := 0
	embed := func(_ context.Context, text string) ([]float32, error) {
		calls++
		if text == "bad" {
			return nil, embedder.ErrEmptyText
		}
		return []float32{float32(len(text))}, nil
	}

	out, err := embedder.EmbedEach(context.Background(), []string{"a", "bbb"}, embed)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {3}}, out)
	assert.Equal(t, 2, calls)

	_, err = embedder.EmbedEach(context.Background(), []string{"ok", "bad"}, embed)
	assert.ErrorIs(t, err, embedder.ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "text 1")
}
