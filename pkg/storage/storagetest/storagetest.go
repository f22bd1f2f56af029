// Package storagetest holds the behaviour every storage.VectorStore must share.
//
// Backend packages call Run from their tests with a factory for a fresh store.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/storage"
)

// Factory returns a store ready for use plus a cleanup function.
type Factory func(t *testing.T) (storage.VectorStore, func())

// Run executes the conformance tests against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EnsureCollectionIdempotent", func(t *testing.T) {
		store, cleanup := newStore(t)
		defer cleanup()

		ctx := context.Background()
		name := uniqueCollection()

		require.NoError(t, store.EnsureCollection(ctx, name, 3, storage.MetricCosine))
		require.NoError(t, store.EnsureCollection(ctx, name, 3, storage.MetricCosine))

		n, err := store.Count(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("EnsureCollectionDimensionConflict", func(t *testing.T) {
		store, cleanup := newStore(t)
		defer cleanup()

		ctx := context.Background()
		name := uniqueCollection()

		require.NoError(t, store.EnsureCollection(ctx, name, 3, storage.MetricCosine))

		err := store.EnsureCollection(ctx, name, 4, storage.MetricCosine)
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrSchemaConflict)
	})

	t.Run("UpsertThenSearch", func(t *testing.T) {
		store, cleanup := newStore(t)
		defer cleanup()

		ctx := context.Background()
		name := uniqueCollection()
		require.NoError(t, store.EnsureCollection(ctx, name, 3, storage.MetricCosine))

		points := []*storage.Point{
			point(1, "alice", "first", []float32{1, 0, 0}),
			point(2, "bob", "second", []float32{0.9, 0.1, 0}),
			point(3, "carol", "third", []float32{0, 0, 1}),
		}
		for _, p := range points {
			require.NoError(t, store.Upsert(ctx, name, p))
		}

		results, err := store.Search(ctx, name, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, int64(1), results[0].ID)
		assert.Equal(t, "alice", results[0].Payload.Speaker)
		assert.Equal(t, "first", results[0].Payload.Text)
		assert.Equal(t, points[0].Payload.Timestamp, results[0].Payload.Timestamp)
		assert.InDelta(t, 1.0, results[0].Score, 1e-4)

		assert.Equal(t, int64(2), results[1].ID)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	})

	t.Run("UpsertReplacesSameID", func(t *testing.T) {
		store, cleanup := newStore(t)
		defer cleanup()

		ctx := context.Background()
		name := uniqueCollection()
		require.NoError(t, store.EnsureCollection(ctx, name, 3, storage.MetricCosine))

		require.NoError(t, store.Upsert(ctx, name, point(7, "alice", "old", []float32{1, 0, 0})))
		require.NoError(t, store.Upsert(ctx, name, point(7, "alice", "new", []float32{0, 1, 0})))

		n, err := store.Count(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		results, err := store.Search(ctx, name, []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "new", results[0].Payload.Text)
	})

	t.Run("SearchLimitBeyondCount", func(t *testing.T) {
		store, cleanup := newStore(t)
		defer cleanup()

		ctx := context.Background()
		name := uniqueCollection()
		require.NoError(t, store.EnsureCollection(ctx, name, 3, storage.MetricCosine))

		results, err := store.Search(ctx, name, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)

		require.NoError(t, store.Upsert(ctx, name, point(1, "alice", "only", []float32{1, 0, 0})))

		results, err = store.Search(ctx, name, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("ReservedLookingNames", func(t *testing.T) {
		store, cleanup := newStore(t)
		defer cleanup()

		ctx := context.Background()
		for _, name := range []string{"_registry", "collections"} {
			require.NoError(t, store.EnsureCollection(ctx, name, 3, storage.MetricCosine), name)
			require.NoError(t, store.Upsert(ctx, name, point(1, "alice", "kept", []float32{1, 0, 0})), name)

			results, err := store.Search(ctx, name, []float32{1, 0, 0}, 1)
			require.NoError(t, err, name)
			require.Len(t, results, 1, name)
			assert.Equal(t, "kept", results[0].Payload.Text)
		}

		// the registry must still answer for other collections
		other := uniqueCollection()
		require.NoError(t, store.EnsureCollection(ctx, other, 3, storage.MetricCosine))
		assert.ErrorIs(t, store.EnsureCollection(ctx, other, 4, storage.MetricCosine), storage.ErrSchemaConflict)
	})

	t.Run("CountTracksUpserts", func(t *testing.T) {
		store, cleanup := newStore(t)
		defer cleanup()

		ctx := context.Background()
		name := uniqueCollection()
		require.NoError(t, store.EnsureCollection(ctx, name, 3, storage.MetricCosine))

		for i := 1; i <= 4; i++ {
			require.NoError(t, store.Upsert(ctx, name, point(int64(i), "alice", fmt.Sprintf("m%d", i), []float32{1, float32(i), 0})))
		}

		n, err := store.Count(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}

func point(id int64, speaker, text string, vector []float32) *storage.Point {
	return &storage.Point{
		ID:     id,
		Vector: vector,
		Payload: storage.Payload{
			Speaker:   speaker,
			Text:      text,
			Timestamp: storage.FormatTimestamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		},
	}
}

// uniqueCollection keeps runs against shared servers apart.
func uniqueCollection() string {
	return fmt.Sprintf("ltm_test_%d", time.Now().UnixNano())
}
