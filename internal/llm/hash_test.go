package llm

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	v1, _ := e.Embed(ctx, "The system shall encrypt PHI at rest.")
	v2, _ := e.Embed(ctx, "The system shall encrypt PHI at rest.")

	if len(v1) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}

	if n := cosine(v1, v1); math.Abs(n-1) > 1e-5 {
		t.Errorf("expected unit self-similarity, got %f", n)
	}
}

func TestHashEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "The system shall encrypt patient data at rest")
	b, _ := e.Embed(ctx, "Patient data at rest shall be encrypted by the system")
	c, _ := e.Embed(ctx, "Quarterly financial statements require auditor sign-off")

	if cosine(a, b) <= cosine(a, c) {
		t.Errorf("expected related texts to be closer: ab=%f ac=%f", cosine(a, b), cosine(a, c))
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(0)
	v, err := e.Embed(context.Background(), "  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != defaultHashDimensions {
		t.Errorf("expected default dimensions, got %d", len(v))
	}
	if e.Model() != "hash-256" {
		t.Errorf("unexpected model %s", e.Model())
	}
}
