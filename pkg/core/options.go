package core

import (
	"log/slog"
	"time"
)

// Option is a function type for configuring an Engine.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type Option func(*engineOptions)

type engineOptions struct {
	limit        int
	verbose      bool
	logger       *slog.Logger
	embedWorkers int
	embedTimeout time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	nodeID       int64
}

func defaultOptions() engineOptions {
	return engineOptions{
		limit:        DefaultLimit,
		embedTimeout: DefaultEmbedTimeout,
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
		nodeID:       -1,
	}
}

// WithLimit sets the number of memories returned by a recall.
// Values below 1 are ignored.
//
// Example:
//
//	engine, _ := core.New(ctx, "demo", emb, store, core.WithLimit(3))
func WithLimit(limit int) Option {
	return func(o *engineOptions) {
		if limit >= 1 {
			o.limit = limit
		}
	}
}

// WithVerbose enables debug logging of search results.
func WithVerbose(verbose bool) Option {
	return func(o *engineOptions) {
		o.verbose = verbose
	}
}

// WithLogger sets the engine logger (default: logging.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithEmbedWorkers bounds concurrent embedding calls (default: number of CPUs).
func WithEmbedWorkers(n int) Option {
	return func(o *engineOptions) {
		o.embedWorkers = n
	}
}

// WithEmbedTimeout bounds each embedding call. Zero disables the bound.
func WithEmbedTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.embedTimeout = d
	}
}

// WithStoreTimeout bounds each vector store call. Zero disables the bound.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.storeTimeout = d
	}
}

// WithClock replaces time.Now for record timestamps and the current-time
// suffix of memory strings.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithNodeID pins the snowflake node used for record IDs (0-1023).
// By default each engine takes its own node, starting from a random one per
// process, so writers sharing a collection do not mint the same ID.
// Negative values keep the default.
func WithNodeID(id int64) Option {
	return func(o *engineOptions) {
		o.nodeID = id
	}
}
