// Package chromem provides an embedded storage.VectorStore on top of chromem-go.
//
// chromem-go is a pure Go vector database. It ranks by cosine similarity only,
// keeps everything in memory and optionally persists to a directory.
package chromem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/oceanbase/ltm-go/pkg/storage"
)

const (
	metaSpeaker   = "speaker"
	metaTimestamp = "timestamp"
)

// Store wraps a chromem-go database.
type Store struct {
	db          *chromem.DB
	collections map[string]*collection
	mu          sync.RWMutex
}

type collection struct {
	col    *chromem.Collection
	schema storage.CollectionSchema
}

// Config contains chromem configuration.
type Config struct {
	// Path is the persistence directory. Empty keeps the database in memory.
	Path string

	// Compress gzips persisted documents.
	Compress bool
}

// New creates a new chromem-based store.
func New(cfg *Config) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg == nil || cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, storage.Unavailable("NewChromemStore", err)
		}
	}

	return &Store{
		db:          db,
		collections: make(map[string]*collection),
	}, nil
}

// EnsureCollection creates the collection or validates an existing one.
//
// A collection loaded from disk is probed with a query of the requested
// dimension; chromem rejects vectors of a different length.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int, metric storage.MetricType) error {
	if dimension <= 0 {
		return fmt.Errorf("EnsureCollection: invalid dimension %d", dimension)
	}
	want := storage.CollectionSchema{Dimension: dimension, Metric: metric}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c.schema.Check(name, want)
	}

	have := storage.CollectionSchema{Dimension: dimension, Metric: storage.MetricCosine}
	if err := have.Check(name, want); err != nil {
		return fmt.Errorf("EnsureCollection: %w", err)
	}

	col, err := s.db.GetOrCreateCollection(name, map[string]string{
		"dimension": strconv.Itoa(dimension),
		"metric":    string(storage.MetricCosine),
	}, nil)
	if err != nil {
		return storage.Unavailable("EnsureCollection", err)
	}

	if col.Count() > 0 {
		probe := make([]float32, dimension)
		probe[0] = 1
		if _, err := col.QueryEmbedding(ctx, probe, 1, nil, nil); err != nil {
			return fmt.Errorf("EnsureCollection: %w: %v", &storage.SchemaConflictError{
				Collection: name,
				Have:       storage.CollectionSchema{Metric: storage.MetricCosine},
				Want:       want,
			}, err)
		}
	}

	s.collections[name] = &collection{col: col, schema: have}
	return nil
}

func (s *Store) get(name string) (*collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
	}
	return c, nil
}

// Upsert stores a point. Documents with an existing ID are overwritten.
func (s *Store) Upsert(ctx context.Context, collection string, point *storage.Point) error {
	c, err := s.get(collection)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	if len(point.Vector) != c.schema.Dimension {
		return fmt.Errorf("Upsert: %w", storage.DimensionMismatch(collection, c.schema, len(point.Vector)))
	}

	// chromem normalizes in place
	embedding := make([]float32, len(point.Vector))
	copy(embedding, point.Vector)

	doc := chromem.Document{
		ID:        strconv.FormatInt(point.ID, 10),
		Content:   point.Payload.Text,
		Embedding: embedding,
		Metadata: map[string]string{
			metaSpeaker:   point.Payload.Speaker,
			metaTimestamp: point.Payload.Timestamp,
		},
	}

	if err := c.col.AddDocument(ctx, doc); err != nil {
		return storage.Unavailable("Upsert", err)
	}
	return nil
}

// Search returns up to topK points by cosine similarity.
//
// chromem-go requires nResults <= collection size, so topK is clamped.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, topK int) ([]*storage.ScoredPoint, error) {
	c, err := s.get(collection)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	if len(vector) != c.schema.Dimension {
		return nil, fmt.Errorf("Search: %w", storage.DimensionMismatch(collection, c.schema, len(vector)))
	}

	if n := c.col.Count(); topK > n {
		topK = n
	}
	if topK <= 0 {
		return []*storage.ScoredPoint{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)

	results, err := c.col.QueryEmbedding(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}

	points := make([]*storage.ScoredPoint, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("Search: document id %q: %w", r.ID, err)
		}
		points = append(points, &storage.ScoredPoint{
			ID:    id,
			Score: float64(r.Similarity),
			Payload: storage.Payload{
				Speaker:   r.Metadata[metaSpeaker],
				Text:      r.Content,
				Timestamp: r.Metadata[metaTimestamp],
			},
		})
	}

	return points, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(_ context.Context, collection string) (int, error) {
	c, err := s.get(collection)
	if err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return c.col.Count(), nil
}

// Close releases the collection handles. Persistent databases write on every
// add, so there is nothing to flush.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections = make(map[string]*collection)
	return nil
}
