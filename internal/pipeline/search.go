package pipeline

import (
	"context"
	"fmt"

	"github.com/ppiankov/reqtrace/internal/artifact"
	"github.com/ppiankov/reqtrace/internal/categorize"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/vectorstore"
)

// SearchHit is one requirement returned by Search
type SearchHit struct {
	RequirementID string  `json:"requirement_id"`
	Distance      float64 `json:"distance"`
	Title         string  `json:"title,omitempty"`
	Statement     string  `json:"statement,omitempty"`
}

// Search returns the k requirements nearest to query. With input set, the
// embeddings of that categorized artifact are searched in memory; otherwise
// the configured vector store is queried.
func (p *Pipeline) Search(ctx context.Context, query, input string, k int) (hits []SearchHit, err error) {
	embedder, err := p.llmEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	var (
		store vectorstore.Store
		byID  = map[string]model.EnrichedRequirement{}
	)

	if input != "" {
		reqs, err := artifact.ReadJSON[[]model.EnrichedRequirement](input)
		if err != nil {
			return nil, err
		}
		metric, err := vectorstore.ParseMetric(p.config.VectorStore.Metric)
		if err != nil {
			return nil, err
		}
		store = vectorstore.NewMemoryStore(metric)
		if _, err := categorize.Index(ctx, store, reqs); err != nil {
			return nil, err
		}
		for _, r := range reqs {
			byID[r.RequirementID] = r
		}
	} else {
		store, err = vectorstore.Open(p.config.VectorStore)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close vector store: %w", closeErr)
		}
	}()

	matches, err := categorize.Search(ctx, embedder, store, query, k)
	if err != nil {
		return nil, err
	}

	hits = make([]SearchHit, len(matches))
	for i, m := range matches {
		hits[i] = SearchHit{RequirementID: m.ID, Distance: m.Distance}
		if r, ok := byID[m.ID]; ok {
			hits[i].Title = r.Title
			hits[i].Statement = r.Statement
		}
	}
	return hits, nil
}
