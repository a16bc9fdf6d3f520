package rag

import (
	"context"
	"fmt"
	"math"
	"sort"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// Index is an in-memory vector index over the knowledge base.
// It is built once at startup and only read afterwards.
type Index struct {
	docs    []domain.KnowledgeDocument
	vectors [][]float32
}

// BuildIndex embeds every document's content and stores unit-normalized vectors.
func BuildIndex(ctx context.Context, embedder out.Embedder, docs []domain.KnowledgeDocument) (*Index, error) {
	idx := &Index{docs: docs}
	if len(docs) == 0 {
		return idx, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embed corpus: got %d vectors for %d documents", len(vectors), len(docs))
	}

	idx.vectors = make([][]float32, len(vectors))
	for i, v := range vectors {
		idx.vectors[i] = normalize(v)
	}
	return idx, nil
}

func (idx *Index) Len() int {
	return len(idx.docs)
}

type scored struct {
	pos   int
	score float64
}

// search ranks all documents by inner product with a normalized query.
func (idx *Index) search(query []float32, k int) []scored {
	results := make([]scored, len(idx.docs))
	for i, v := range idx.vectors {
		results[i] = scored{pos: i, score: dot(query, v)}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].score > results[b].score
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
