// Package local provides a deterministic, dependency-free embedder.
//
// Texts are embedded by feature hashing: every normalized word is hashed to a
// signed coordinate, so texts sharing words point in similar directions. It
// needs no model download or network, which makes it the default for tests
// and offline use. Quality is far below a neural model.
package local

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/oceanbase/ltm-go/pkg/embedder"
)

// DefaultDimensions is the vector size when Config.Dimensions is zero.
const DefaultDimensions = 1024

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "i": {}, "me": {}, "my": {}, "you": {}, "your": {},
	"we": {}, "our": {}, "they": {}, "their": {}, "he": {}, "she": {}, "his": {}, "her": {},
	"it": {}, "its": {}, "in": {}, "on": {}, "at": {}, "to": {}, "of": {}, "and": {},
	"or": {}, "but": {}, "so": {}, "as": {}, "by": {}, "from": {}, "for": {}, "with": {},
	"is": {}, "am": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "do": {},
	"did": {}, "does": {}, "have": {}, "has": {}, "had": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "not": {}, "no": {}, "very": {}, "just": {},
}

// Embedder is a feature-hashing embedder.
type Embedder struct {
	dimensions int
}

// Config configures the local embedder.
type Config struct {
	// Dimensions is the embedding vector size (default: 1024).
	Dimensions int
}

// New creates a local embedder.
func New(cfg Config) *Embedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: cfg.Dimensions}
}

// Embed hashes the words of text into a unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedder.CheckText(text); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, embedder.Failed("local", err)
	}

	vec := make([]float32, e.dimensions)
	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dimensions))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	return embedder.Normalize(vec), nil
}

// EmbedBatch embeds each text in turn.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedder.EmbedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

// Tokenize splits text into lowercased, stemmed words without stopwords.
//
// A text made only of stopwords keeps them; a text without any letters or
// digits becomes a single token so no input maps to the zero vector.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, stem(w))
	}

	if len(tokens) == 0 {
		for _, w := range words {
			tokens = append(tokens, stem(w))
		}
	}
	if len(tokens) == 0 {
		tokens = append(tokens, strings.TrimSpace(text))
	}

	return tokens
}

// stem strips a few English suffixes so inflections share a token:
// "hiking", "hikes" and "hike" all become "hik".
func stem(w string) string {
	for _, suffix := range []string{"ing", "ed"} {
		if len(w) > len(suffix)+2 && strings.HasSuffix(w, suffix) {
			w = strings.TrimSuffix(w, suffix)
			break
		}
	}
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		w = strings.TrimSuffix(w, "s")
	}
	if len(w) > 3 && strings.HasSuffix(w, "e") {
		w = strings.TrimSuffix(w, "e")
	}
	return w
}
