package qwen_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/embedder"
	"github.com/oceanbase/ltm-go/pkg/embedder/qwen"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := qwen.NewClient(&qwen.Config{})
	assert.Error(t, err)

	c, err := qwen.NewClient(&qwen.Config{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimensions())
}

func TestClient_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/embeddings/text-embedding/text-embedding", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req struct {
			Model string `json:"model"`
			Input struct {
				Texts []string `json:"texts"`
			} `json:"input"`
			Parameters struct {
				Dimension int `json:"dimension"`
			} `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-v4", req.Model)
		assert.Equal(t, 3, req.Parameters.Dimension)

		type item struct {
			TextIndex int       `json:"text_index"`
			Embedding []float32 `json:"embedding"`
		}
		var items []item
		for i := len(req.Input.Texts) - 1; i >= 0; i-- {
			items = append(items, item{TextIndex: i, Embedding: []float32{float32(i), 0, 1}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"output": map[string]any{"embeddings": items}})
	}))
	defer srv.Close()

	c, err := qwen.NewClient(&qwen.Config{APIKey: "key", BaseURL: srv.URL, Dimensions: 3})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(t.Context(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 0, 1}, {1, 0, 1}}, vecs)

	vec, err := c.Embed(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, vec)
}

func TestClient_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"InvalidApiKey"}`))
	}))
	defer srv.Close()

	c, err := qwen.NewClient(&qwen.Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Embed(t.Context(), "hello")
	assert.ErrorIs(t, err, embedder.ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "401")

	_, err = c.Embed(t.Context(), " ")
	assert.ErrorIs(t, err, embedder.ErrEmptyText)
}
