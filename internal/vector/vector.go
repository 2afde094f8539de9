// Package vector provides deterministic feature-hashed text vectors.
//
// There is no trained embedding model: tokens are hashed into a fixed
// number of dimensions (FNV-1a with a sign bit) and the result is
// L2-normalized. The same text always produces the same vector.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// DefaultDims is the default vector dimensionality.
const DefaultDims = 256

// ErrDimensionMismatch is returned when two vectors of different
// lengths are combined, or a vector of the wrong length is indexed.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hash computes the 32-bit FNV-1a hash of a token.
func Hash(token string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(token); i++ {
		h ^= uint32(token[i])
		h *= 16777619
	}
	return h
}

// Vectorize produces a DefaultDims-dimensional vector for text.
func Vectorize(text string) Vector {
	return VectorizeDim(text, DefaultDims)
}

// VectorizeDim hashes each token of text into one of dims slots with a
// signed contribution and L2-normalizes the result. Text with no usable
// tokens yields the all-zero vector.
func VectorizeDim(text string, dims int) Vector {
	v := make(Vector, dims)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return v
	}

	for _, tok := range tokens {
		h := Hash(tok)
		slot := int(h % uint32(dims))
		// Sign from a bit the slot does not depend on, so colliding
		// tokens tend to cancel rather than pile up.
		if h&0x80000000 != 0 {
			v[slot] -= 1
		} else {
			v[slot] += 1
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// CosineSimilarity computes cosine similarity between two vectors.
// Either operand being the zero vector yields 0; mismatched lengths are
// an error, never silently truncated.
func CosineSimilarity(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
