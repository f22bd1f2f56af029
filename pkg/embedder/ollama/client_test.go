package ollama_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/embedder"
	"github.com/oceanbase/ltm-go/pkg/embedder/ollama"
)

func TestNewClient_Dimensions(t *testing.T) {
	c, err := ollama.NewClient(&ollama.Config{})
	require.NoError(t, err)
	assert.Equal(t, 768, c.Dimensions())

	c, err = ollama.NewClient(&ollama.Config{Model: "all-minilm"})
	require.NoError(t, err)
	assert.Equal(t, 384, c.Dimensions())

	_, err = ollama.NewClient(&ollama.Config{Model: "my-model"})
	assert.Error(t, err)

	c, err = ollama.NewClient(&ollama.Config{Model: "my-model", Dimensions: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, c.Dimensions())
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embeddings":
			var req struct {
				Model  string `json:"model"`
				Prompt string `json:"prompt"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "tiny", req.Model)
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.5, 0.25, float64(len(req.Prompt))}})
		case "/api/embed":
			var req struct {
				Input []string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			out := make([][]float32, len(req.Input))
			for i, text := range req.Input {
				out[i] = []float32{1, 0, float32(len(text))}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"model": "tiny", "embeddings": out})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestClient_Embed(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c, err := ollama.NewClient(&ollama.Config{BaseURL: srv.URL, Model: "tiny", Dimensions: 3})
	require.NoError(t, err)

	vec, err := c.Embed(t.Context(), "four")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 4}, vec)

	_, err = c.Embed(t.Context(), "")
	assert.ErrorIs(t, err, embedder.ErrEmptyText)
}

func TestClient_EmbedBatch(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c, err := ollama.NewClient(&ollama.Config{BaseURL: srv.URL, Model: "tiny", Dimensions: 3})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(t.Context(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 1}, {1, 0, 2}}, vecs)
}

func TestClient_WrongDimensions(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c, err := ollama.NewClient(&ollama.Config{BaseURL: srv.URL, Model: "tiny", Dimensions: 5})
	require.NoError(t, err)

	_, err = c.Embed(t.Context(), "text")
	assert.ErrorIs(t, err, embedder.ErrEmbeddingFailed)
}

func TestClient_Unreachable(t *testing.T) {
	c, err := ollama.NewClient(&ollama.Config{BaseURL: "http://127.0.0.1:1", Model: "tiny", Dimensions: 3})
	require.NoError(t, err)

	_, err = c.Embed(t.Context(), "text")
	assert.ErrorIs(t, err, embedder.ErrEmbeddingFailed)
}
