// Package sqlite provides SQLite implementation for vector storage.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small-scale applications. Vectors are stored as JSON strings in TEXT fields,
// and similarity search uses in-memory cosine similarity calculation.
//
// Each collection is a table; a registry table records the dimension and metric
// every collection was created with.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oceanbase/ltm-go/pkg/storage"
)

// maxIdentifierLen keeps table names short enough for index names derived from them.
const maxIdentifierLen = 60

// Client implements VectorStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// schemas caches the registry rows of ensured collections.
	schemas map[string]storage.CollectionSchema

	mu sync.RWMutex
}

// Config contains configuration for creating a SQLite VectorStore.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
}

// NewClient creates a new SQLite VectorStore client.
//
// Parameters:
//   - cfg: Configuration containing the database path
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or registry creation fails
func NewClient(cfg *Config) (*Client, error) {
	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, storage.Unavailable("NewSQLiteClient", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, storage.Unavailable("NewSQLiteClient", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("NewSQLiteClient", err)
	}

	client := &Client{
		db:      db,
		schemas: make(map[string]storage.CollectionSchema),
	}

	if err := client.initRegistry(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initRegistry creates the collection registry table.
func (c *Client) initRegistry(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ltm__registry (
			name TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			metric TEXT NOT NULL
		)
	`)
	if err != nil {
		return storage.Unavailable("initRegistry", err)
	}
	return nil
}

// EnsureCollection creates the collection table and registry row if missing,
// or validates the registered schema.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int, metric storage.MetricType) error {
	want := storage.CollectionSchema{Dimension: dimension, Metric: metric}

	c.mu.Lock()
	defer c.mu.Unlock()

	if have, ok := c.schemas[name]; ok {
		return have.Check(name, want)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable("EnsureCollection", err)
	}
	defer func() { _ = tx.Rollback() }()

	var have storage.CollectionSchema
	var metricStr string
	err = tx.QueryRowContext(ctx,
		"SELECT dimension, metric FROM ltm__registry WHERE name = ?", name,
	).Scan(&have.Dimension, &metricStr)

	switch {
	case err == nil:
		have.Metric = storage.MetricType(metricStr)
		if err := have.Check(name, want); err != nil {
			return fmt.Errorf("EnsureCollection: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		table := storage.TableName(name, maxIdentifierLen)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ltm__registry (name, table_name, dimension, metric) VALUES (?, ?, ?, ?)",
			name, table, dimension, string(metric),
		); err != nil {
			return storage.Unavailable("EnsureCollection", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY,
				speaker TEXT NOT NULL,
				text TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				embedding TEXT NOT NULL
			)
		`, table)); err != nil {
			return storage.Unavailable("EnsureCollection", err)
		}
		have = want
	default:
		return storage.Unavailable("EnsureCollection", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Unavailable("EnsureCollection", err)
	}

	c.schemas[name] = have
	return nil
}

// schema returns the registered schema of an ensured collection.
func (c *Client) schema(name string) (storage.CollectionSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.schemas[name]
	if !ok {
		return storage.CollectionSchema{}, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
	}
	return s, nil
}

// Upsert inserts or replaces a point.
//
// Vectors are stored as JSON strings in TEXT fields.
func (c *Client) Upsert(ctx context.Context, collection string, point *storage.Point) error {
	s, err := c.schema(collection)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	if len(point.Vector) != s.Dimension {
		return fmt.Errorf("Upsert: %w", storage.DimensionMismatch(collection, s, len(point.Vector)))
	}

	embeddingJSON, err := json.Marshal(point.Vector)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (id, speaker, text, timestamp, embedding)
		VALUES (?, ?, ?, ?, ?)
	`, storage.TableName(collection, maxIdentifierLen))

	_, err = c.db.ExecContext(ctx, query,
		point.ID,
		point.Payload.Speaker,
		point.Payload.Text,
		point.Payload.Timestamp,
		string(embeddingJSON),
	)
	if err != nil {
		return storage.Unavailable("Upsert", err)
	}

	return nil
}

// Search performs vector similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory over a full table scan.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]*storage.ScoredPoint, error) {
	s, err := c.schema(collection)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	if len(vector) != s.Dimension {
		return nil, fmt.Errorf("Search: %w", storage.DimensionMismatch(collection, s, len(vector)))
	}
	if topK <= 0 {
		return []*storage.ScoredPoint{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, speaker, text, timestamp, embedding
		FROM %s
		ORDER BY id
	`, storage.TableName(collection, maxIdentifierLen))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}
	defer func() { _ = rows.Close() }()

	var points []*storage.ScoredPoint
	for rows.Next() {
		var (
			p            storage.ScoredPoint
			embeddingStr string
			embedding    []float32
		)
		if err := rows.Scan(&p.ID, &p.Payload.Speaker, &p.Payload.Text, &p.Payload.Timestamp, &embeddingStr); err != nil {
			return nil, storage.Unavailable("Search", err)
		}
		if err := json.Unmarshal([]byte(embeddingStr), &embedding); err != nil {
			return nil, fmt.Errorf("Search: parse embedding: %w", err)
		}

		p.Score = storage.CosineSimilarity(vector, embedding)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("Search", err)
	}

	return storage.SortByScore(points, topK), nil
}

// Count returns the number of points in the collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	if _, err := c.schema(collection); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}

	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", storage.TableName(collection, maxIdentifierLen))
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, storage.Unavailable("Count", err)
	}
	return n, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
