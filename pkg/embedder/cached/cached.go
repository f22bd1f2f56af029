// Package cached memoizes an embedder.Provider with a ristretto cache.
//
// RecordAndRecall embeds the same text for storing and querying, and chat
// hosts often re-send identical turns, so repeated texts skip the model.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/oceanbase/ltm-go/pkg/embedder"
)

// DefaultMaxEntries bounds the cache when Config.MaxEntries is zero.
const DefaultMaxEntries = 10_000

// Provider wraps another provider with a bounded cache keyed by text.
type Provider struct {
	next  embedder.Provider
	cache *ristretto.Cache
}

// Config configures the cache.
type Config struct {
	// MaxEntries is the approximate number of vectors kept.
	MaxEntries int64
}

// New wraps next with a cache.
func New(next embedder.Provider, cfg Config) (*Provider, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Provider{next: next, cache: cache}, nil
}

// Embed returns a cached vector or computes and stores it.
//
// Callers receive a copy; mutating it does not affect the cache.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := p.cache.Get(text); ok {
		return clone(v.([]float32)), nil
	}

	vec, err := p.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	p.cache.Set(text, clone(vec), 1)
	// make the entry visible to the next Get
	p.cache.Wait()

	return vec, nil
}

// EmbedBatch serves cached texts and sends the rest to the wrapped provider in one batch.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if v, ok := p.cache.Get(text); ok {
			out[i] = clone(v.([]float32))
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := p.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[slots[j]] = vec
		p.cache.Set(missing[j], clone(vec), 1)
	}
	p.cache.Wait()

	return out, nil
}

// Dimensions returns the wrapped provider's dimensions.
func (p *Provider) Dimensions() int {
	return p.next.Dimensions()
}

// Close releases the cache and the wrapped provider.
func (p *Provider) Close() error {
	p.cache.Close()
	return p.next.Close()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
