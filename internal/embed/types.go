// Package embed turns chunk and query text into fixed-dimension unit
// vectors. The only embedder the core contract requires is "hash"; other
// names may be registered with Register and constructed by Build.
package embed

import (
	"context"
	"math"
)

// Embedder produces a deterministic embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

func l2Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm <= 0 {
		return vec
	}
	inv := float32(1.0 / math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
