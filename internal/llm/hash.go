package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultHashDimensions = 256

// HashEmbedder is a deterministic, offline embedder based on signed feature
// hashing of word unigrams and bigrams. Texts sharing vocabulary land close
// together, which is enough for retrieval over a single document set.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder with the given number of dimensions
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Name returns the provider name
func (e *HashEmbedder) Name() string { return "hash" }

// Model returns the model identifier, which encodes the dimensions
func (e *HashEmbedder) Model() string { return fmt.Sprintf("hash-%d", e.dims) }

// Dimensions returns the vector length
func (e *HashEmbedder) Dimensions() int { return e.dims }

// Embed returns the L2-normalized feature-hash vector of text
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}

	return vec, nil
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dims))
	// The top bit picks the sign so collisions tend to cancel out
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
