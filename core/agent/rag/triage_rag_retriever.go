package rag

import (
	"context"
	"fmt"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const (
	DefaultTopK   = 3
	snippetLength = 150
)

type Retriever struct {
	embedder out.Embedder
	index    *Index
}

func NewRetriever(embedder out.Embedder, index *Index) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve returns up to topK documents most similar to query, best first.
// topK <= 0 selects DefaultTopK. Scores are raw cosine similarity and may be negative.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	if r.index == nil || r.index.Len() == 0 {
		return []domain.RetrievalHit{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	ranked := r.index.search(normalize(vectors[0]), topK)

	hits := make([]domain.RetrievalHit, len(ranked))
	for i, s := range ranked {
		doc := r.index.docs[s.pos]
		hits[i] = domain.RetrievalHit{
			DocID:   doc.ID,
			Title:   doc.Title,
			Snippet: snippet(doc.Content),
			Score:   s.score,
		}
	}
	return hits, nil
}

func snippet(content string) string {
	return domain.Truncate(content, snippetLength)
}
