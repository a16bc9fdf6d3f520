package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

// CachedEmbedder memoizes embeddings in a shared cache keyed by text hash.
// Cache failures are logged and never fail the embedding call.
type CachedEmbedder struct {
	next  out.Embedder
	cache out.Cache
	model string
	ttl   time.Duration
}

func NewCachedEmbedder(next out.Embedder, cache out.Cache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model, ttl: ttl}
}

var _ out.Embedder = (*CachedEmbedder)(nil)

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missing []int

	for i, t := range texts {
		var v []float32
		ok, err := e.cache.GetJSON(ctx, e.key(t), &v)
		if err != nil {
			logger.WithError(err).Warn("embedding cache read failed")
		}
		if ok && len(v) > 0 {
			result[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return result, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vectors, err := e.next.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}

	for j, i := range missing {
		result[i] = vectors[j]
		if err := e.cache.SetJSON(ctx, e.key(texts[i]), vectors[j], e.ttl); err != nil {
			logger.WithError(err).Warn("embedding cache write failed")
		}
	}
	return result, nil
}

func (e *CachedEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(e.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(h[:])
}
