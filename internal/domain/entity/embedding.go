package entity

import (
	"fmt"
	"math"
)

// Embedding is a fixed-length content vector describing a short audio clip.
// Stored and query embeddings are unit-normalized, so cosine similarity
// between any two of them reduces to a plain dot product.
type Embedding []float32

// NormTolerance is the allowed deviation from unit length for a stored embedding.
const NormTolerance = 1e-5

// Dim returns the embedding dimension.
func (e Embedding) Dim() int { return len(e) }

// Norm returns the L2 norm of the vector.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product with another embedding of the same dimension.
// For unit vectors this is the cosine similarity.
func (e Embedding) Dot(other Embedding) float64 {
	var sum float64
	for i, v := range e {
		sum += float64(v) * float64(other[i])
	}
	return sum
}

// Normalized returns a unit-length copy of the embedding.
// It fails on zero-norm or non-finite input, which indicates a malformed
// model output that must never be stored.
func (e Embedding) Normalized() (Embedding, error) {
	for i, v := range e {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: non-finite component at index %d", ErrInvalidEmbedding, i)
		}
	}
	norm := e.Norm()
	if norm == 0 {
		return nil, fmt.Errorf("%w: zero-norm vector", ErrInvalidEmbedding)
	}
	out := make(Embedding, len(e))
	inv := 1 / norm
	for i, v := range e {
		out[i] = float32(float64(v) * inv)
	}
	return out, nil
}

// IsUnit reports whether the embedding is unit-length within NormTolerance.
func (e Embedding) IsUnit() bool {
	return math.Abs(e.Norm()-1) <= NormTolerance
}

// Clone returns an independent copy of the embedding.
func (e Embedding) Clone() Embedding {
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}
