package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/core"
)

func TestEngine_RememberBatch(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, nil, core.WithEmbedWorkers(2))

	turns := []core.Turn{
		{Speaker: "alice", Text: "I love hiking in the mountains"},
		{Speaker: "bob", Text: "Mountains are my favorite place to hike"},
		{Speaker: "", Text: "nobody said this"},
		{Speaker: "alice", Text: "   "},
		{Speaker: "bob", Text: "I enjoy cooking pasta on weekends"},
		{Speaker: " \t", Text: "a blank speaker is still nobody"},
	}

	result, err := engine.RememberBatch(ctx, turns)
	require.NoError(t, err)

	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 3, result.CreatedCount)
	assert.Equal(t, 3, result.FailedCount)

	require.Len(t, result.Created, 3)
	assert.Equal(t, "I love hiking in the mountains", result.Created[0].Text)
	assert.Equal(t, "Mountains are my favorite place to hike", result.Created[1].Text)
	assert.Equal(t, "I enjoy cooking pasta on weekends", result.Created[2].Text)
	assert.Less(t, result.Created[0].ID, result.Created[1].ID)
	assert.Less(t, result.Created[1].ID, result.Created[2].ID)

	require.Len(t, result.Failed, 3)
	assert.Equal(t, 2, result.Failed[0].Index)
	assert.ErrorIs(t, result.Failed[0].Error, core.ErrInvalidInput)
	assert.Contains(t, result.Failed[0].Error.Error(), "speaker is required")
	assert.Equal(t, 3, result.Failed[1].Index)
	assert.ErrorIs(t, result.Failed[1].Error, core.ErrEmbeddingFailed)
	assert.Equal(t, 5, result.Failed[2].Index)
	assert.ErrorIs(t, result.Failed[2].Error, core.ErrInvalidInput)

	n, err := engine.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEngine_RememberBatchEmpty(t *testing.T) {
	engine := newEngine(t, nil)

	result, err := engine.RememberBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.Empty(t, result.Created)
	assert.Empty(t, result.Failed)
}
