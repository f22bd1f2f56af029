package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/oceanbase/ltm-go/pkg/embedder"
	"github.com/oceanbase/ltm-go/pkg/logging"
	"github.com/oceanbase/ltm-go/pkg/storage"
)

const tracerName = "github.com/oceanbase/ltm-go/pkg/core"

const maxNodeID = 1<<10 - 1

var (
	nodeSeedOnce sync.Once
	nodeSeq      atomic.Int64
)

// nextNodeID hands out snowflake nodes round-robin from a random start, so
// engines in one process never share a node and separate processes rarely do.
func nextNodeID() int64 {
	nodeSeedOnce.Do(func() {
		seed, err := rand.Int(rand.Reader, big.NewInt(maxNodeID+1))
		if err != nil {
			nodeSeq.Store(time.Now().UnixNano() & maxNodeID)
			return
		}
		nodeSeq.Store(seed.Int64())
	})
	return nodeSeq.Add(1) & maxNodeID
}

// Engine is a long-term memory for one conversation collection.
//
// It stores every turn as an embedded record and recalls the most similar
// earlier turns as memory strings for the next prompt. An Engine is
// long-lived and safe for concurrent use from multiple goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	engine, _ := core.Open(ctx, config)
//	defer engine.Close()
//
//	memories, _ := engine.RecordAndRecall(ctx, "Alice", "I love hiking in the mountains")
type Engine struct {
	// collection is the namespace all records are stored in.
	collection string

	// embedder converts text into vectors.
	embedder embedder.Provider

	// store persists and searches records.
	store storage.VectorStore

	// dimensions is the vector size of the collection.
	dimensions int

	limit   atomic.Int64
	verbose atomic.Bool

	logger *slog.Logger
	tracer trace.Tracer

	// node generates unique record IDs.
	node *snowflake.Node

	// embedSem bounds concurrent embedding calls to embedWorkers.
	embedSem     *semaphore.Weighted
	embedWorkers int

	embedTimeout time.Duration
	storeTimeout time.Duration
	now          func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open creates an engine from configuration.
//
// It builds the embedder and vector store named by cfg, then ensures the
// collection exists with the embedder's dimension and the cosine metric.
// Every failure wraps ErrInitialization; a mismatched existing collection
// also matches ErrSchemaConflict.
//
// Example:
//
//	cfg := core.DefaultConfig()
//	cfg.Collection = "alice_and_bot"
//	engine, err := core.Open(ctx, cfg)
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, initError("Open", err)
	}

	emb, err := initEmbedder(cfg.Embedder)
	if err != nil {
		return nil, initError("Open", err)
	}

	store, err := initStorage(cfg.VectorStore)
	if err != nil {
		_ = emb.Close()
		return nil, initError("Open", err)
	}

	base := []Option{
		WithLimit(cfg.Limit),
		WithVerbose(cfg.Verbose),
		WithEmbedWorkers(cfg.EmbedWorkers),
	}
	if cfg.EmbedTimeout > 0 {
		base = append(base, WithEmbedTimeout(time.Duration(cfg.EmbedTimeout)))
	}
	if cfg.StoreTimeout > 0 {
		base = append(base, WithStoreTimeout(time.Duration(cfg.StoreTimeout)))
	}

	engine, err := New(ctx, cfg.Collection, emb, store, append(base, opts...)...)
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}
	return engine, nil
}

// New creates an engine from already constructed dependencies.
//
// The engine takes ownership of emb and store: Close closes both. On error
// the caller still owns them.
func New(ctx context.Context, collection string, emb embedder.Provider, store storage.VectorStore, opts ...Option) (*Engine, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, initError("New", fmt.Errorf("%w: collection is required", ErrInvalidConfig))
	}
	if emb == nil || store == nil {
		return nil, initError("New", fmt.Errorf("%w: embedder and vector store are required", ErrInvalidConfig))
	}

	dims := emb.Dimensions()
	if dims <= 0 {
		return nil, initError("New", fmt.Errorf("%w: embedder reports %d dimensions", ErrInvalidConfig, dims))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.embedWorkers <= 0 {
		o.embedWorkers = runtime.NumCPU()
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}

	if o.nodeID < 0 {
		o.nodeID = nextNodeID()
	}
	node, err := snowflake.NewNode(o.nodeID)
	if err != nil {
		return nil, initError("New", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	e := &Engine{
		collection:   collection,
		embedder:     emb,
		store:        store,
		dimensions:   dims,
		logger:       o.logger.With("collection", collection),
		tracer:       otel.Tracer(tracerName),
		node:         node,
		embedSem:     semaphore.NewWeighted(int64(o.embedWorkers)),
		embedWorkers: o.embedWorkers,
		embedTimeout: o.embedTimeout,
		storeTimeout: o.storeTimeout,
		now:          o.now,
	}
	e.limit.Store(int64(o.limit))
	e.verbose.Store(o.verbose)

	sctx, cancel := withTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := store.EnsureCollection(sctx, collection, dims, storage.MetricCosine); err != nil {
		return nil, initError("New", storage.Unavailable("EnsureCollection", err))
	}

	e.logger.Debug("memory engine ready", "dimensions", dims, "limit", o.limit)
	return e, nil
}

// Collection returns the collection name.
func (e *Engine) Collection() string {
	return e.collection
}

// Limit returns the number of memories a recall returns.
func (e *Engine) Limit() int {
	return int(e.limit.Load())
}

// SetLimit changes the number of memories a recall returns.
//
// Recalls already in flight keep the limit they started with.
func (e *Engine) SetLimit(limit int) error {
	if limit < 1 {
		return NewMemoryError("SetLimit", fmt.Errorf("%w: limit must be at least 1, got %d", ErrInvalidInput, limit))
	}
	e.limit.Store(int64(limit))
	return nil
}

// SetVerbose toggles logging of raw search results at info level.
func (e *Engine) SetVerbose(verbose bool) {
	e.verbose.Store(verbose)
}

// Remember embeds text and stores it as a record spoken by speaker.
//
// The record is searchable as soon as Remember returns. Remember never
// retries; a failed store leaves nothing behind.
//
// Errors wrap ErrEmbeddingFailed (including empty text), ErrStoreUnavailable,
// ErrSchemaConflict or ErrInvalidInput (empty speaker).
func (e *Engine) Remember(ctx context.Context, speaker, text string) (*Record, error) {
	ctx, span := e.startSpan(ctx, "Remember")
	defer span.End()

	rec, err := e.remember(ctx, speaker, text)
	if err != nil {
		return nil, e.fail(span, "Remember", err)
	}
	span.SetAttributes(attribute.Int64("ltm.record_id", rec.ID))
	return rec, nil
}

// Recall returns up to Limit memory strings for the records most similar to
// query, excluding the single most similar one.
//
// The excluded hit is the record the caller typically just stored with the
// same text. Fewer than two hits yield an empty slice.
func (e *Engine) Recall(ctx context.Context, query string) ([]string, error) {
	ctx, span := e.startSpan(ctx, "Recall")
	defer span.End()

	rs, err := e.recallResults(ctx, query)
	if err != nil {
		return nil, e.fail(span, "Recall", err)
	}
	return FormatMemories(rs, e.now()), nil
}

// RecallResults is Recall without formatting: it returns the same entries
// with their scores.
func (e *Engine) RecallResults(ctx context.Context, query string) ([]*Recollection, error) {
	ctx, span := e.startSpan(ctx, "RecallResults")
	defer span.End()

	rs, err := e.recallResults(ctx, query)
	if err != nil {
		return nil, e.fail(span, "RecallResults", err)
	}
	return rs, nil
}

// RecordAndRecall stores a turn and returns the memories it evokes.
//
// The turn's own embedding is reused as the query, and the top hit (the
// turn itself) is dropped exactly once. If the turn was stored but the
// recall failed, the error is a *PartialError carrying the record; hosts
// can continue the turn without injected memories.
func (e *Engine) RecordAndRecall(ctx context.Context, speaker, text string) ([]string, error) {
	ctx, span := e.startSpan(ctx, "RecordAndRecall")
	defer span.End()

	limit := e.Limit()

	rec, err := e.remember(ctx, speaker, text)
	if err != nil {
		return nil, e.fail(span, "RecordAndRecall", err)
	}
	span.SetAttributes(attribute.Int64("ltm.record_id", rec.ID))

	rs, err := e.search(ctx, rec.Vector, limit)
	if err != nil {
		return nil, e.fail(span, "RecordAndRecall", &PartialError{Record: rec, Err: err})
	}

	if e.verbose.Load() {
		if n, err := e.count(ctx); err == nil {
			e.logger.Info("collection size", "count", n)
		}
	}

	return FormatMemories(rs, e.now()), nil
}

// Count returns the number of records in the collection.
func (e *Engine) Count(ctx context.Context) (int, error) {
	if e.closed.Load() {
		return 0, NewMemoryError("Count", ErrClosed)
	}
	n, err := e.count(ctx)
	if err != nil {
		return 0, NewMemoryError("Count", err)
	}
	return n, nil
}

// Close releases the embedder and vector store.
//
// Calls after the first return the same result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.closeErr = errors.Join(e.embedder.Close(), e.store.Close())
		if e.closeErr != nil {
			e.closeErr = NewMemoryError("Close", e.closeErr)
		}
	})
	return e.closeErr
}

func (e *Engine) remember(ctx context.Context, speaker, text string) (*Record, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if strings.TrimSpace(speaker) == "" {
		return nil, fmt.Errorf("%w: speaker is required", ErrInvalidInput)
	}

	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.storeRecord(ctx, speaker, text, vec)
}

func (e *Engine) storeRecord(ctx context.Context, speaker, text string, vec []float32) (*Record, error) {
	rec := &Record{
		ID:        e.node.Generate().Int64(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: e.now().UTC(),
		Vector:    vec,
	}

	sctx, cancel := withTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.store.Upsert(sctx, e.collection, toPoint(rec)); err != nil {
		return nil, storage.Unavailable("Upsert", err)
	}

	e.logger.Debug("stored record", "id", rec.ID, "speaker", speaker)
	return rec, nil
}

func (e *Engine) recallResults(ctx context.Context, query string) ([]*Recollection, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	limit := e.Limit()
	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.search(ctx, vec, limit)
}

// search fetches limit+1 hits and drops the first one positionally.
func (e *Engine) search(ctx context.Context, vec []float32, limit int) ([]*Recollection, error) {
	sctx, cancel := withTimeout(ctx, e.storeTimeout)
	defer cancel()

	hits, err := e.store.Search(sctx, e.collection, vec, limit+1)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}

	if e.verbose.Load() {
		for i, h := range hits {
			e.logger.Info("search result", "rank", i, "id", h.ID, "score", h.Score, "speaker", h.Payload.Speaker)
		}
	}

	if len(hits) < 2 {
		return []*Recollection{}, nil
	}
	hits = hits[1:]
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]*Recollection, len(hits))
	for i, h := range hits {
		out[i] = toRecollection(h)
	}
	return out, nil
}

// embed runs one embedding call inside the worker pool and the embed timeout.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.embedSem.Acquire(ctx, 1); err != nil {
		return nil, embedder.Failed("Embed", err)
	}
	defer e.embedSem.Release(1)

	ectx, cancel := withTimeout(ctx, e.embedTimeout)
	defer cancel()

	vec, err := e.embedder.Embed(ectx, text)
	if err != nil {
		return nil, embedder.Failed("Embed", err)
	}
	if err := embedder.CheckDimensions(vec, e.dimensions); err != nil {
		return nil, fmt.Errorf("Embed: %w", err)
	}
	return vec, nil
}

func (e *Engine) count(ctx context.Context) (int, error) {
	sctx, cancel := withTimeout(ctx, e.storeTimeout)
	defer cancel()

	n, err := e.store.Count(sctx, e.collection)
	if err != nil {
		return 0, storage.Unavailable("Count", err)
	}
	return n, nil
}

func (e *Engine) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "ltm."+op, trace.WithAttributes(
		attribute.String("ltm.collection", e.collection),
	))
}

// fail records err on the span and wraps it with the operation name.
func (e *Engine) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.logger.Debug("operation failed", "op", op, "error", err)
	return NewMemoryError(op, err)
}

// withTimeout bounds ctx by d; zero leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
