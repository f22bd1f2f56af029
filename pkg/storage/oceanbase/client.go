// Package oceanbase provides an OceanBase implementation of storage.VectorStore.
//
// OceanBase speaks the MySQL protocol and stores embeddings in native VECTOR
// columns ranked with cosine_distance.
package oceanbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/oceanbase/ltm-go/pkg/storage"
)

// MySQL-compatible identifiers are limited to 64 characters.
const maxIdentifierLen = 64

// mysqlDuplicateEntry is the server error number for a primary key collision.
const mysqlDuplicateEntry = 1062

// Client is an OceanBase client.
type Client struct {
	db      *sql.DB
	schemas map[string]storage.CollectionSchema
	mu      sync.RWMutex
}

// Config contains OceanBase configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// NewClient creates a new OceanBase client.
func NewClient(cfg *Config) (*Client, error) {
	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnCfg.DBName = cfg.DBName
	dsnCfg.ParseTime = true

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, storage.Unavailable("NewOceanBaseClient", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("NewOceanBaseClient", err)
	}

	client := &Client{
		db:      db,
		schemas: make(map[string]storage.CollectionSchema),
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables creates the collection registry.
func (c *Client) initTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ltm__registry (
			name VARCHAR(255) PRIMARY KEY,
			table_name VARCHAR(64) NOT NULL,
			dimension INT NOT NULL,
			metric VARCHAR(16) NOT NULL
		)
	`)
	if err != nil {
		return storage.Unavailable("initTables", err)
	}
	return nil
}

// EnsureCollection creates the collection table if missing, or validates the
// registered schema.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int, metric storage.MetricType) error {
	want := storage.CollectionSchema{Dimension: dimension, Metric: metric}

	c.mu.Lock()
	defer c.mu.Unlock()

	if have, ok := c.schemas[name]; ok {
		return have.Check(name, want)
	}

	table := storage.TableName(name, maxIdentifierLen)
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO ltm__registry (name, table_name, dimension, metric) VALUES (?, ?, ?, ?)",
		name, table, dimension, string(metric),
	)
	var myErr *mysql.MySQLError
	if err != nil && !(errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry) {
		return storage.Unavailable("EnsureCollection", err)
	}

	var (
		have      storage.CollectionSchema
		metricStr string
	)
	err = c.db.QueryRowContext(ctx,
		"SELECT dimension, metric FROM ltm__registry WHERE name = ?", name,
	).Scan(&have.Dimension, &metricStr)
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
			speaker VARCHAR(255) NOT NULL,
			text LONGTEXT NOT NULL,
			timestamp VARCHAR(64) NOT NULL,
			embedding VECTOR(%d) NOT NULL
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
		REPLACE INTO %s (id, speaker, text, timestamp, embedding)
		VALUES (?, ?, ?, ?, ?)
	`, storage.TableName(collection, maxIdentifierLen))

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

// Search performs vector search ranked by cosine distance.
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
		SELECT id, speaker, text, timestamp, cosine_distance(embedding, ?) AS distance
		FROM %s
		ORDER BY distance ASC, id ASC
		LIMIT ?
	`, storage.TableName(collection, maxIdentifierLen))

	rows, err := c.db.QueryContext(ctx, query, storage.VectorToString(vector), topK)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}
	defer func() { _ = rows.Close() }()

	points := make([]*storage.ScoredPoint, 0, topK)
	for rows.Next() {
		var (
			p        storage.ScoredPoint
			distance sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.Payload.Speaker, &p.Payload.Text, &p.Payload.Timestamp, &distance); err != nil {
			return nil, storage.Unavailable("Search", err)
		}
		// Convert distance to similarity score (1 - distance)
		if distance.Valid {
			p.Score = 1.0 - distance.Float64
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
