package core

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// RememberBatch stores several turns.
//
// Embeddings are computed concurrently through the engine's worker pool, while
// records are written one by one in input order so their IDs and timestamps
// keep the conversation's chronology. A failed item does not stop the batch;
// it is reported in BatchResult.Failed.
//
// Example:
//
//	turns := []core.Turn{
//	    {Speaker: "Alice", Text: "I love hiking in the mountains"},
//	    {Speaker: "Bot", Text: "Which trail did you enjoy most?"},
//	}
//	result, err := engine.RememberBatch(ctx, turns)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Stored %d/%d turns\n", result.CreatedCount, result.Total)
func (e *Engine) RememberBatch(ctx context.Context, turns []Turn) (*BatchResult, error) {
	ctx, span := e.startSpan(ctx, "RememberBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("ltm.batch_size", len(turns)))

	result := &BatchResult{
		Total:   len(turns),
		Created: make([]*Record, 0, len(turns)),
		Failed:  make([]BatchError, 0),
	}
	if len(turns) == 0 {
		return result, nil
	}
	if e.closed.Load() {
		return nil, e.fail(span, "RememberBatch", ErrClosed)
	}

	vectors := make([][]float32, len(turns))
	errs := make([]error, len(turns))

	var g errgroup.Group
	g.SetLimit(e.embedWorkers)
	for i, turn := range turns {
		g.Go(func() error {
			if strings.TrimSpace(turn.Speaker) == "" {
				errs[i] = NewMemoryError("RememberBatch", fmt.Errorf("%w: speaker is required", ErrInvalidInput))
				return nil
			}
			vec, err := e.embed(ctx, turn.Text)
			if err != nil {
				errs[i] = NewMemoryError("RememberBatch", err)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	for i, turn := range turns {
		if errs[i] == nil {
			rec, err := e.storeRecord(ctx, turn.Speaker, turn.Text, vectors[i])
			if err != nil {
				errs[i] = NewMemoryError("RememberBatch", err)
			} else {
				result.Created = append(result.Created, rec)
				continue
			}
		}
		result.Failed = append(result.Failed, BatchError{Turn: turn, Error: errs[i], Index: i})
	}

	result.CreatedCount = len(result.Created)
	result.FailedCount = len(result.Failed)
	e.logger.Debug("stored batch", "created", result.CreatedCount, "failed", result.FailedCount)
	return result, nil
}
