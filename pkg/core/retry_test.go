package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/storage"
)

var fastRetry = core.RetryPolicy{Attempts: 4, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetry(t *testing.T) {
	unavailable := storage.Unavailable("Ping", errors.New("connection refused"))

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "succeeds first time",
			failures:  0,
			err:       unavailable,
			wantCalls: 1,
		},
		{
			name:      "recovers after unavailable",
			failures:  2,
			err:       unavailable,
			wantCalls: 3,
		},
		{
			name:      "gives up after attempts",
			failures:  10,
			err:       unavailable,
			wantCalls: 4,
			wantErr:   core.ErrStoreUnavailable,
		},
		{
			name:      "does not retry schema conflict",
			failures:  10,
			err:       &storage.SchemaConflictError{Collection: "demo"},
			wantCalls: 1,
			wantErr:   core.ErrSchemaConflict,
		},
		{
			name:      "does not retry embedding failure",
			failures:  10,
			err:       core.ErrEmbeddingFailed,
			wantCalls: 1,
			wantErr:   core.ErrEmbeddingFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := core.Retry(context.Background(), fastRetry, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := core.RetryPolicy{Attempts: 5, InitialDelay: time.Hour}
	err := core.Retry(ctx, policy, func(context.Context) error {
		return storage.Unavailable("Ping", errors.New("connection refused"))
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}
