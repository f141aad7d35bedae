// Package vectorstore holds the similarity ranking shared by the backends and
// the session Arena that isolates one index per request.
package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"multirag/internal/domain"
)

// DefaultTopK is used when a caller asks for k <= 0.
const DefaultTopK = 4

// ErrDimensionMismatch is returned by Search when the query vector length
// differs from the indexed vectors.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores chunks against query and returns the k best, nearest first.
// Equal scores keep insertion order. Every chunk must have the query's dimension.
func Rank(query []float64, chunks []domain.EmbeddedChunk, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	results := make([]domain.SearchResult, len(chunks))
	for i, ec := range chunks {
		if len(ec.Vector) != len(query) {
			return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), len(ec.Vector))
		}
		results[i] = domain.SearchResult{Chunk: ec.Chunk, Score: Cosine(query, ec.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// CheckDimensions returns the shared vector length, or false if the chunks disagree.
func CheckDimensions(chunks []domain.EmbeddedChunk) (int, bool) {
	if len(chunks) == 0 {
		return 0, true
	}
	dim := len(chunks[0].Vector)
	for _, ec := range chunks[1:] {
		if len(ec.Vector) != dim {
			return 0, false
		}
	}
	return dim, true
}
