// Package embedder implements S4 of the detection pipeline: composing
// context text into embedding vectors via an external provider, with
// batching, inter-batch rate limiting, and post-condition validation
// (spec.md §4.4).
package embedder

import "context"

// Provider is the external embedding service contract (spec.md §6
// EmbeddingProvider): an ordered sequence of strings in, an equally-long
// ordered sequence of equal-length float vectors out.
type Provider interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}
