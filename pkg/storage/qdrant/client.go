// Package qdrant provides a Qdrant implementation of storage.VectorStore.
//
// The client talks to Qdrant over gRPC (default port 6334). Points carry the
// payload fields speaker, text and timestamp.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oceanbase/ltm-go/pkg/storage"
)

// DefaultAddress is the local Qdrant gRPC endpoint.
const DefaultAddress = "localhost:6334"

// Client is a Qdrant client.
type Client struct {
	client *qdrant.Client
}

// Config contains Qdrant configuration.
type Config struct {
	// Address is host:port of the gRPC endpoint.
	Address string

	// APIKey authenticates against Qdrant Cloud or secured deployments.
	APIKey string

	// UseTLS enables transport security.
	UseTLS bool
}

// NewClient creates a new Qdrant client.
func NewClient(cfg *Config) (*Client, error) {
	addr := cfg.Address
	if addr == "" {
		addr = DefaultAddress
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("NewQdrantClient: invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("NewQdrantClient: invalid port %q: %w", portStr, err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, storage.Unavailable("NewQdrantClient", err)
	}

	return &Client{client: client}, nil
}

// EnsureCollection creates the collection if it does not exist and validates
// the schema of an existing one.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int, metric storage.MetricType) error {
	want := storage.CollectionSchema{Dimension: dimension, Metric: metric}

	distance, err := toDistance(metric)
	if err != nil {
		return fmt.Errorf("EnsureCollection: %w", err)
	}

	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return classify("EnsureCollection", err)
	}

	if !exists {
		err := c.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: distance,
			}),
		})
		switch {
		case err == nil:
			return nil
		case status.Code(err) == codes.AlreadyExists:
			// lost a creation race; validate the winner's schema below
		default:
			return classify("EnsureCollection", err)
		}
	}

	info, err := c.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return classify("EnsureCollection", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		// named vectors; this store only writes the default unnamed vector
		return fmt.Errorf("EnsureCollection: %w", &storage.SchemaConflictError{Collection: name, Want: want})
	}

	have := storage.CollectionSchema{
		Dimension: int(params.GetSize()),
		Metric:    fromDistance(params.GetDistance()),
	}
	if err := have.Check(name, want); err != nil {
		return fmt.Errorf("EnsureCollection: %w", err)
	}
	return nil
}

// Upsert writes a point and waits until Qdrant applied it.
func (c *Client) Upsert(ctx context.Context, collection string, point *storage.Point) error {
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(point.ID)),
				Vectors: qdrant.NewVectors(point.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"speaker":   point.Payload.Speaker,
					"text":      point.Payload.Text,
					"timestamp": point.Payload.Timestamp,
				}),
			},
		},
	})
	if err != nil {
		return classify("Upsert", err)
	}
	return nil
}

// Search runs a nearest-neighbour query and returns hits with their payloads.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]*storage.ScoredPoint, error) {
	if topK <= 0 {
		return []*storage.ScoredPoint{}, nil
	}

	hits, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, classify("Search", err)
	}

	points := make([]*storage.ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		payload := hit.GetPayload()
		points = append(points, &storage.ScoredPoint{
			ID:    int64(hit.GetId().GetNum()),
			Score: float64(hit.GetScore()),
			Payload: storage.Payload{
				Speaker:   payload["speaker"].GetStringValue(),
				Text:      payload["text"].GetStringValue(),
				Timestamp: payload["timestamp"].GetStringValue(),
			},
		})
	}

	return points, nil
}

// Count returns the exact number of points in the collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	n, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classify("Count", err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// classify maps gRPC failures onto storage errors.
//
// Qdrant reports a wrong vector length as InvalidArgument; everything else
// is a backend failure.
func classify(op string, err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w: %w", op, storage.ErrSchemaConflict, err)
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %w", op, storage.ErrCollectionNotFound, err)
	default:
		return storage.Unavailable(op, err)
	}
}

func toDistance(metric storage.MetricType) (qdrant.Distance, error) {
	switch metric {
	case storage.MetricCosine, "":
		return qdrant.Distance_Cosine, nil
	case storage.MetricL2:
		return qdrant.Distance_Euclid, nil
	case storage.MetricIP:
		return qdrant.Distance_Dot, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("unsupported metric %q", metric)
	}
}

func fromDistance(d qdrant.Distance) storage.MetricType {
	switch d {
	case qdrant.Distance_Cosine:
		return storage.MetricCosine
	case qdrant.Distance_Euclid:
		return storage.MetricL2
	case qdrant.Distance_Dot:
		return storage.MetricIP
	default:
		return storage.MetricType(d.String())
	}
}
