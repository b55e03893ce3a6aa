// Package vectorstore persists requirement embeddings and answers nearest
// neighbour queries over them.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/reqtrace/internal/model"
)

// MemoryPath opens an in-memory store instead of a SQLite file
const MemoryPath = ":memory:"

// ErrDimensionMismatch is returned when a vector's length differs from the store's
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Metric is the distance function used for queries
type Metric string

const (
	MetricCosine    Metric = "cosine"    // 1 - cosine similarity
	MetricEuclidean Metric = "euclidean" // L2 distance
)

// ParseMetric validates a configured metric. Empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricCosine:
		return MetricCosine, nil
	case MetricEuclidean, "l2":
		return MetricEuclidean, nil
	}
	return "", fmt.Errorf("unknown distance metric %q (want cosine or euclidean)", s)
}

// Match is one query result
type Match struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// Store keeps one vector per id
type Store interface {
	// Upsert inserts or replaces the vector stored under id
	Upsert(ctx context.Context, id string, vector []float32) error

	// Query returns up to k ids ordered by increasing distance, ties by id
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Len returns the number of stored vectors
	Len(ctx context.Context) (int, error)

	Close() error
}

// Open opens the store described by cfg. MemoryPath gives a MemoryStore.
func Open(cfg model.VectorStoreConfig) (Store, error) {
	metric, err := ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	if cfg.Path == "" || cfg.Path == MemoryPath {
		return NewMemoryStore(metric), nil
	}
	return OpenSQLite(cfg.Path, metric)
}

// Distance computes the metric between two vectors of equal length
func Distance(metric Metric, a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if metric == MetricEuclidean {
		return l2Distance(a, b), nil
	}
	return cosineDistance(a, b), nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		af := float64(a[i])
		bf := float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
