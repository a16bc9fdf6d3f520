package out

import (
	"context"
	"errors"
)

// ErrGeneration wraps every failure of the generative capability: network, API,
// timeout, open circuit. Callers recover locally with a deterministic fallback.
var ErrGeneration = errors.New("generation failed")

// Generator is the generative language model capability.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
}

// Embedder turns texts into fixed-length vectors. Identical input yields identical output.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
