package vectorstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reqtrace/internal/model"
)

func openStores(t *testing.T, metric Metric) map[string]Store {
	t.Helper()
	sqliteStore, err := OpenSQLite(filepath.Join(t.TempDir(), "vectors.db"), metric)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(metric),
		"sqlite": sqliteStore,
	}
}

func TestQueryOrdersByCosineDistance(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t, MetricCosine) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Upsert(ctx, "REQ-001", []float32{1, 0, 0}))
			require.NoError(t, s.Upsert(ctx, "REQ-002", []float32{0, 1, 0}))
			require.NoError(t, s.Upsert(ctx, "REQ-003", []float32{1, 1, 0}))

			got, err := s.Query(ctx, []float32{1, 0.1, 0}, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "REQ-001", got[0].ID)
			assert.Equal(t, "REQ-003", got[1].ID)
			assert.Less(t, got[0].Distance, got[1].Distance)

			n, err := s.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestQueryEuclidean(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t, MetricEuclidean) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Upsert(ctx, "near", []float32{1, 1}))
			require.NoError(t, s.Upsert(ctx, "far", []float32{10, 10}))

			got, err := s.Query(ctx, []float32{0, 0}, 0)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "near", got[0].ID)
			assert.InDelta(t, math.Sqrt2, got[0].Distance, 1e-6)
			assert.InDelta(t, 10*math.Sqrt2, got[1].Distance, 1e-5)
		})
	}
}

func TestUpsertReplacesAndTiesBreakByID(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t, MetricCosine) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Upsert(ctx, "b", []float32{0, 1}))
			require.NoError(t, s.Upsert(ctx, "a", []float32{0, 1}))
			require.NoError(t, s.Upsert(ctx, "b", []float32{0, 1}))

			got, err := s.Query(ctx, []float32{0, 1}, 5)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "a", got[0].ID)
			assert.Equal(t, "b", got[1].ID)
		})
	}
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t, MetricCosine) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Upsert(ctx, "REQ-001", []float32{1, 0, 0}))

			err := s.Upsert(ctx, "REQ-002", []float32{1, 0})
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			_, err = s.Query(ctx, []float32{1, 0}, 1)
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			assert.Error(t, s.Upsert(ctx, "REQ-003", nil))
		})
	}
}

func TestQueryEmptyStore(t *testing.T) {
	for name, s := range openStores(t, MetricCosine) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Query(context.Background(), []float32{1, 2}, 3)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	s, err := OpenSQLite(path, MetricCosine)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "REQ-001", []float32{0.5, 0.5}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, MetricCosine)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Query(ctx, []float32{0.5, 0.5}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "REQ-001", got[0].ID)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
}

func TestOpen(t *testing.T) {
	s, err := Open(model.VectorStoreConfig{Path: MemoryPath, Metric: "cosine"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(model.VectorStoreConfig{Path: filepath.Join(t.TempDir(), "v.db"), Metric: "l2"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(model.VectorStoreConfig{Metric: "manhattan"})
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	d, err := Distance(MetricCosine, []float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-9)

	d, err = Distance(MetricCosine, []float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	_, err = Distance(MetricEuclidean, []float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0, -1.5, 3.25, float32(math.Inf(1))}
	blob, err := encodeVector(in)
	require.NoError(t, err)
	assert.Len(t, blob, 16)

	out, err := decodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
