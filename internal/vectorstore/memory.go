package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a brute-force store held in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	metric  Metric
	dims    int
	vectors map[string][]float32
}

// NewMemoryStore creates an empty store
func NewMemoryStore(metric Metric) *MemoryStore {
	return &MemoryStore{metric: metric, vectors: make(map[string][]float32)}
}

// Upsert implements Store
func (s *MemoryStore) Upsert(ctx context.Context, id string, vector []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vector) == 0 {
		return fmt.Errorf("upsert %s: empty vector", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims != 0 && len(vector) != s.dims {
		return fmt.Errorf("upsert %s: %w: store has %d, got %d", id, ErrDimensionMismatch, s.dims, len(vector))
	}
	s.dims = len(vector)
	s.vectors[id] = append([]float32(nil), vector...)
	return nil
}

// Query implements Store
func (s *MemoryStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.vectors))
	for id, v := range s.vectors {
		d, err := Distance(s.metric, vector, v)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		matches = append(matches, Match{ID: id, Distance: d})
	}

	sortMatches(matches)
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len implements Store
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// Close implements Store
func (s *MemoryStore) Close() error { return nil }

func sortMatches(m []Match) {
	sort.Slice(m, func(i, j int) bool {
		if m[i].Distance != m[j].Distance {
			return m[i].Distance < m[j].Distance
		}
		return m[i].ID < m[j].ID
	})
}
