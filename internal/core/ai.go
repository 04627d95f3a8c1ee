package core

import "context"

// EmbeddingProvider turns texts into vectors, one per input, in input order.
// Implementations wrap ErrRateLimited when the backend throttles.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
