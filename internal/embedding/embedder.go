// Package embedding provides access to an external text embedding provider.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding provider could not produce a
// vector. The core propagates it from the calling index or search operation
// without retrying; retry policy lives inside the provider adapter.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Embedder produces fixed-dimension vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
