// Package storage provides interfaces and types for vector storage backends.
//
// It defines the VectorStore interface that all storage implementations must satisfy,
// along with the point and payload types exchanged with the memory engine.
package storage

import (
	"context"
	"time"
)

// Payload is the durable per-point schema shared by the engine and ingestion tools.
//
// Timestamp is an ISO-8601 (RFC 3339) UTC string.
type Payload struct {
	// Speaker identifies who produced the utterance.
	Speaker string `json:"speaker"`

	// Text is the utterance content.
	Text string `json:"text"`

	// Timestamp is when the record was stored.
	Timestamp string `json:"timestamp"`
}

// Point is a single vector with its identifier and payload.
type Point struct {
	// ID is unique within a collection.
	ID int64

	// Vector is the dense embedding of Payload.Text.
	Vector []float32

	// Payload carries the record fields.
	Payload Payload
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	// ID is the identifier of the matched point.
	ID int64

	// Score is the cosine similarity to the query vector (higher = more similar).
	Score float64

	// Payload carries the record fields of the matched point.
	Payload Payload
}

// MetricType defines the distance metric for vector similarity.
type MetricType string

const (
	// MetricCosine uses cosine similarity.
	MetricCosine MetricType = "cosine"

	// MetricL2 uses Euclidean distance (L2 norm).
	MetricL2 MetricType = "l2"

	// MetricIP uses inner product (dot product).
	MetricIP MetricType = "ip"
)

// CollectionSchema is the fixed shape of a collection.
type CollectionSchema struct {
	// Dimension is the vector length of every point in the collection.
	Dimension int

	// Metric is the similarity metric the collection ranks by.
	Metric MetricType
}

// Check compares a stored schema against the one a caller expects.
//
// It returns an error wrapping ErrSchemaConflict on any difference.
func (s CollectionSchema) Check(collection string, want CollectionSchema) error {
	if s.Dimension != want.Dimension {
		return &SchemaConflictError{Collection: collection, Have: s, Want: want}
	}
	if s.Metric != "" && want.Metric != "" && s.Metric != want.Metric {
		return &SchemaConflictError{Collection: collection, Have: s, Want: want}
	}
	return nil
}

// VectorStore defines the interface for vector storage backends.
//
// All storage implementations (Qdrant, chromem, SQLite, PostgreSQL, OceanBase)
// must implement this interface.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	//
	// It is idempotent: an existing collection with the same dimension and metric
	// is left untouched, while a mismatched one fails with ErrSchemaConflict.
	EnsureCollection(ctx context.Context, name string, dimension int, metric MetricType) error

	// Upsert inserts or replaces a point.
	//
	// It returns only after the backend acknowledged the write, so an
	// immediately following Search observes the point.
	Upsert(ctx context.Context, collection string, point *Point) error

	// Search returns up to topK points ordered by descending similarity.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]*ScoredPoint, error)

	// Count returns the number of points stored in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close closes the store and releases resources.
	Close() error
}

// FormatTimestamp renders t the way payloads store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a payload timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
