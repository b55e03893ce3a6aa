package categorize

import (
	"context"
	"fmt"

	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/vectorstore"
)

// Index upserts every requirement that carries an embedding and returns how
// many were stored
func Index(ctx context.Context, store vectorstore.Store, reqs []model.EnrichedRequirement) (int, error) {
	n := 0
	for _, r := range reqs {
		if len(r.Embedding) == 0 {
			continue
		}
		if err := store.Upsert(ctx, r.RequirementID, r.Embedding); err != nil {
			return n, fmt.Errorf("index %s: %w", r.RequirementID, err)
		}
		n++
	}
	return n, nil
}

// Search embeds text and returns the k nearest requirement ids
func Search(ctx context.Context, embedder llm.Embedder, store vectorstore.Store, text string, k int) ([]vectorstore.Match, error) {
	vector, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return store.Query(ctx, vector, k)
}
