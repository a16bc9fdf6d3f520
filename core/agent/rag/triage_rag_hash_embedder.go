package rag

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"triage_server/core/port/out"
)

const DefaultHashDimensions = 512

// HashEmbedder is an offline embedder: lower-cased word tokens are hashed into
// a fixed number of buckets. Used when no embedding model is configured.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

var _ out.Embedder = (*HashEmbedder)(nil)

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, e.dims)
		for _, token := range tokenize(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(token))
			v[h.Sum32()%uint32(e.dims)]++
		}
		vectors[i] = v
	}
	return vectors, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
