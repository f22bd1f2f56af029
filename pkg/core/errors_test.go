package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/embedder"
	"github.com/oceanbase/ltm-go/pkg/storage"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "ErrEmbeddingFailed",
			err:      core.ErrEmbeddingFailed,
			expected: "embedding failed",
		},
		{
			name:     "ErrStoreUnavailable",
			err:      core.ErrStoreUnavailable,
			expected: "vector store unavailable",
		},
		{
			name:     "ErrSchemaConflict",
			err:      core.ErrSchemaConflict,
			expected: "collection schema conflict",
		},
		{
			name:     "ErrInitialization",
			err:      core.ErrInitialization,
			expected: "initialization failed",
		},
		{
			name:     "ErrInvalidConfig",
			err:      core.ErrInvalidConfig,
			expected: "invalid configuration",
		},
		{
			name:     "ErrInvalidInput",
			err:      core.ErrInvalidInput,
			expected: "invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorAliases(t *testing.T) {
	assert.ErrorIs(t, embedder.Failed("openai", errors.New("timeout")), core.ErrEmbeddingFailed)
	assert.ErrorIs(t, storage.Unavailable("Search", errors.New("connection refused")), core.ErrStoreUnavailable)
	assert.ErrorIs(t, &storage.SchemaConflictError{Collection: "demo"}, core.ErrSchemaConflict)
}

func TestMemoryError(t *testing.T) {
	err := core.NewMemoryError("Remember", core.ErrEmbeddingFailed)

	assert.Equal(t, "ltm: Remember: embedding failed", err.Error())
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)

	var memErr *core.MemoryError
	assert.ErrorAs(t, err, &memErr)
	assert.Equal(t, "Remember", memErr.Op)
}

func TestNewMemoryError_Nil(t *testing.T) {
	assert.NoError(t, core.NewMemoryError("Remember", nil))
}

func TestPartialError(t *testing.T) {
	cause := storage.Unavailable("Search", errors.New("connection reset"))
	record := &core.Record{ID: 7, Speaker: "alice", Text: "I love hiking in the mountains"}
	err := fmt.Errorf("turn: %w", &core.PartialError{Record: record, Err: cause})

	assert.ErrorIs(t, err, core.ErrRecallAfterStore)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	var partial *core.PartialError
	if assert.ErrorAs(t, err, &partial) {
		assert.Equal(t, int64(7), partial.Record.ID)
	}
	assert.Contains(t, err.Error(), "stored but recall failed")
}
