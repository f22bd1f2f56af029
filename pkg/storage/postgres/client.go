// Package postgres provides a PostgreSQL + pgvector implementation of storage.VectorStore.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"github.com/oceanbase/ltm-go/pkg/storage"
)

// PostgreSQL truncates identifiers beyond 63 bytes.
const maxIdentifierLen = 63

// Client is a PostgreSQL + pgvector client.
type Client struct {
	db      *sql.DB
	schemas map[string]storage.CollectionSchema
	mu      sync.RWMutex
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, storage.Unavailable("NewPostgresClient", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("NewPostgresClient", err)
	}

	client := &Client{
		db:      db,
		schemas: make(map[string]storage.CollectionSchema),
	}

	// Initialize pgvector extension and registry table
	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables enables pgvector and creates the collection registry.
func (c *Client) initTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return storage.Unavailable("initTables: create extension", err)
	}

	_, err = c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ltm__registry (
			name TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			metric TEXT NOT NULL
		)
	`)
	if err != nil {
		return storage.Unavailable("initTables: create registry", err)
	}

	return nil
}

// EnsureCollection creates the collection table if missing, or validates the
// registered schema. Concurrent creators race on the registry primary key;
// the loser re-reads the winner's row.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int, metric storage.MetricType) error {
	want := storage.CollectionSchema{Dimension: dimension, Metric: metric}

	c.mu.Lock()
	defer c.mu.Unlock()

	if have, ok := c.schemas[name]; ok {
		return have.Check(name, want)
	}

	table := storage.TableName(name, maxIdentifierLen)
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO ltm__registry (name, table_name, dimension, metric)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
	`, name, table, dimension, string(metric))
	if err != nil {
		return storage.Unavailable("EnsureCollection", err)
	}

	var (
		have      storage.CollectionSchema
		metricStr string
	)
	err = c.db.QueryRowContext(ctx,
		"SELECT dimension, metric FROM ltm__registry WHERE name = $1", name,
	).Scan(&have.Dimension, &metricStr)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Unavailable("EnsureCollection", fmt.Errorf("registry row for %q vanished", name))
	}
	if err != nil {
		return storage.Unavailable("EnsureCollection", err)
	}
	have.Metric = storage.MetricType(metricStr)

	if err := have.Check(name, want); err != nil {
		return fmt.Errorf("EnsureCollection: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)
	`, table, have.Dimension)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return storage.Unavailable("EnsureCollection: create table", err)
	}

	c.schemas[name] = have
	return nil
}

func (c *Client) schema(name string) (storage.CollectionSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.schemas[name]
	if !ok {
		return storage.CollectionSchema{}, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
	}
	return s, nil
}

// Upsert inserts a point or replaces the one with the same ID.
func (c *Client) Upsert(ctx context.Context, collection string, point *storage.Point) error {
	s, err := c.schema(collection)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	if len(point.Vector) != s.Dimension {
		return fmt.Errorf("Upsert: %w", storage.DimensionMismatch(collection, s, len(point.Vector)))
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, speaker, text, timestamp, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			speaker = EXCLUDED.speaker,
			text = EXCLUDED.text,
			timestamp = EXCLUDED.timestamp,
			embedding = EXCLUDED.embedding
	`, storage.TableName(collection, maxIdentifierLen))

	// Convert vector to PostgreSQL vector format: "[0.1,0.2,0.3,...]"
	_, err = c.db.ExecContext(ctx, query,
		point.ID,
		point.Payload.Speaker,
		point.Payload.Text,
		point.Payload.Timestamp,
		storage.VectorToString(point.Vector),
	)
	if err != nil {
		return storage.Unavailable("Upsert", err)
	}

	return nil
}

// Search performs vector search using pgvector's cosine distance operator.
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

	// <=> is cosine distance, 1 - cosine similarity
	query := fmt.Sprintf(`
		SELECT id, speaker, text, timestamp, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, storage.TableName(collection, maxIdentifierLen))

	rows, err := c.db.QueryContext(ctx, query, storage.VectorToString(vector), topK)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}
	defer func() { _ = rows.Close() }()

	points := make([]*storage.ScoredPoint, 0, topK)
	for rows.Next() {
		var (
			p     storage.ScoredPoint
			score sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.Payload.Speaker, &p.Payload.Text, &p.Payload.Timestamp, &score); err != nil {
			return nil, storage.Unavailable("Search", err)
		}
		// zero-norm vectors yield NaN distances
		if score.Valid {
			p.Score = score.Float64
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("Search", err)
	}

	return points, nil
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
	return c.db.Close()
}
