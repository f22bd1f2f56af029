package qdrant

import (
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oceanbase/ltm-go/pkg/storage"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		not  []error
	}{
		{
			name: "wrong vector size",
			err:  status.Error(codes.InvalidArgument, "Wrong input: Vector dimension error: expected dim: 3, got 4"),
			want: storage.ErrSchemaConflict,
			not:  []error{storage.ErrUnavailable, storage.ErrCollectionNotFound},
		},
		{
			name: "missing collection",
			err:  status.Error(codes.NotFound, "Collection `demo` doesn't exist!"),
			want: storage.ErrCollectionNotFound,
			not:  []error{storage.ErrUnavailable, storage.ErrSchemaConflict},
		},
		{
			name: "server down",
			err:  status.Error(codes.Unavailable, "connection refused"),
			want: storage.ErrUnavailable,
			not:  []error{storage.ErrSchemaConflict},
		},
		{
			name: "deadline",
			err:  status.Error(codes.DeadlineExceeded, "context deadline exceeded"),
			want: storage.ErrUnavailable,
		},
		{
			name: "plain error",
			err:  errors.New("broken pipe"),
			want: storage.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("Upsert", tt.err)
			require.Error(t, got)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
			assert.Contains(t, got.Error(), "Upsert")
			for _, other := range tt.not {
				assert.NotErrorIs(t, got, other)
			}
		})
	}
}

func TestDistanceMapping(t *testing.T) {
	tests := []struct {
		metric storage.MetricType
		want   qdrant.Distance
	}{
		{storage.MetricCosine, qdrant.Distance_Cosine},
		{storage.MetricL2, qdrant.Distance_Euclid},
		{storage.MetricIP, qdrant.Distance_Dot},
	}
	for _, tt := range tests {
		got, err := toDistance(tt.metric)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.metric, fromDistance(got))
	}

	got, err := toDistance("")
	require.NoError(t, err)
	assert.Equal(t, qdrant.Distance_Cosine, got)

	_, err = toDistance("hamming")
	assert.Error(t, err)

	assert.Equal(t, storage.MetricType(qdrant.Distance_Manhattan.String()), fromDistance(qdrant.Distance_Manhattan))
}
