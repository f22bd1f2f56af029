package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/embedder/local"
	"github.com/oceanbase/ltm-go/pkg/ingest"
	"github.com/oceanbase/ltm-go/pkg/logging"
	chromemStore "github.com/oceanbase/ltm-go/pkg/storage/chromem"
)

var conversation = []core.Turn{
	{Speaker: "alice", Text: "I love hiking in the mountains"},
	{Speaker: "bot", Text: "Mountains are my favorite place to hike"},
	{Speaker: "alice", Text: "ok"},
	{Speaker: "alice", Text: "We hiked to the summit last summer"},
	{Speaker: "bot", Text: "The summit view was worth the climb"},
}

func newEngine(t *testing.T) *core.Engine {
	t.Helper()
	store, err := chromemStore.New(nil)
	require.NoError(t, err)
	engine, err := core.New(context.Background(), "demo", local.New(local.Config{}), store,
		core.WithLogger(logging.Discard()), core.WithLimit(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func quiet() context.Context {
	return logging.With(context.Background(), logging.Discard())
}

func TestFilter(t *testing.T) {
	turns := []core.Turn{
		{Speaker: "alice", Text: "ok"},
		{Speaker: "alice", Text: "   padded   "},
		{Speaker: "alice", Text: "exactly10!"},
		{Speaker: "alice", Text: "héllo wörld"},
		{Speaker: "alice", Text: ""},
	}

	got := ingest.Filter(turns, core.DefaultMinTextLength)
	assert.Equal(t, []core.Turn{
		{Speaker: "alice", Text: "exactly10!"},
		{Speaker: "alice", Text: "héllo wörld"},
	}, got)

	assert.Len(t, ingest.Filter(turns, 0), 4)
}

func TestRun_Remember(t *testing.T) {
	ctx := quiet()
	engine := newEngine(t)

	result, err := ingest.Run(ctx, engine, conversation, ingest.Options{MinTextLength: core.DefaultMinTextLength})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 4, result.StoredCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Zero(t, result.FailedCount)

	n, err := engine.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRun_RecordAndRecall(t *testing.T) {
	ctx := quiet()
	engine := newEngine(t)

	var evoked [][]string
	result, err := ingest.Run(ctx, engine, conversation, ingest.Options{
		Mode:          ingest.ModeRecordAndRecall,
		MinTextLength: core.DefaultMinTextLength,
		OnTurn: func(_ int, _ core.Turn, memories []string) {
			evoked = append(evoked, memories)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.StoredCount)

	require.Len(t, evoked, 4)
	assert.Empty(t, evoked[0])
	assert.Len(t, evoked[1], 1)
	assert.Len(t, evoked[2], 2)
	assert.Len(t, evoked[3], 3)
}

// flakyRecorder fails selected turns.
type flakyRecorder struct {
	calls int
}

func (r *flakyRecorder) Remember(context.Context, string, string) (*core.Record, error) {
	r.calls++
	if r.calls == 2 {
		return nil, core.NewMemoryError("Remember", core.ErrStoreUnavailable)
	}
	return &core.Record{}, nil
}

func (r *flakyRecorder) RecordAndRecall(_ context.Context, _, text string) ([]string, error) {
	r.calls++
	if r.calls == 2 {
		return nil, &core.PartialError{Record: &core.Record{Text: text}, Err: core.ErrStoreUnavailable}
	}
	if r.calls == 3 {
		return nil, core.NewMemoryError("RecordAndRecall", core.ErrEmbeddingFailed)
	}
	return []string{}, nil
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	rec := &flakyRecorder{}
	result, err := ingest.Run(quiet(), rec, conversation, ingest.Options{})
	require.NoError(t, err)

	assert.Equal(t, 5, rec.calls)
	assert.Equal(t, 4, result.StoredCount)
	require.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.ErrorIs(t, result.Failed[0].Error, core.ErrStoreUnavailable)
}

func TestRun_PartialCountsAsStored(t *testing.T) {
	rec := &flakyRecorder{}
	result, err := ingest.Run(quiet(), rec, conversation, ingest.Options{Mode: ingest.ModeRecordAndRecall})
	require.NoError(t, err)

	assert.Equal(t, 4, result.StoredCount)
	require.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 2, result.Failed[0].Index)
	assert.ErrorIs(t, result.Failed[0].Error, core.ErrEmbeddingFailed)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(quiet())
	cancel()

	result, err := ingest.Run(ctx, &flakyRecorder{}, conversation, ingest.Options{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, result.StoredCount)
}
