package vectorindex

import (
	"fmt"
	"math"
	"sort"

	appErr "github.com/xxxsen/evstore/internal/pkg/errors"
)

// Index is a flat exact-similarity index. Vectors are unit-normalized at
// insert so a query score is a plain dot product. Rows are append-only and
// addressed by insertion order.
//
// The index carries no locking of its own; the owning session serializes
// access to it.
type Index struct {
	dim  int
	rows [][]float32
}

// Hit is one ranked result: the row's insertion index and its cosine
// similarity against the query.
type Hit struct {
	Index int
	Score float32
}

func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectorindex: dimension must be positive, got %d", dim)
	}
	return &Index{dim: dim}, nil
}

func (i *Index) Dimension() int {
	return i.dim
}

func (i *Index) Len() int {
	return len(i.rows)
}

// Append adds vectors in order. The whole batch is validated before any row
// is stored, so a bad vector never leaves a partially-appended index.
func (i *Index) Append(vectors [][]float32) error {
	normalized := make([][]float32, 0, len(vectors))
	for n, vec := range vectors {
		if len(vec) != i.dim {
			return fmt.Errorf("vectorindex: vector %d has dimension %d, index expects %d: %w",
				n, len(vec), i.dim, appErr.ErrDimensionMismatch)
		}
		unit, err := normalize(vec)
		if err != nil {
			return fmt.Errorf("vectorindex: vector %d: %w", n, err)
		}
		normalized = append(normalized, unit)
	}
	i.rows = append(i.rows, normalized...)
	return nil
}

// Vector returns a copy of the stored (normalized) row, or nil when idx is
// out of range.
func (i *Index) Vector(idx int) []float32 {
	if idx < 0 || idx >= len(i.rows) {
		return nil
	}
	out := make([]float32, i.dim)
	copy(out, i.rows[idx])
	return out
}

// Rows returns a view of the stored rows. The slice header is capped at the
// current length, so later appends never show through it; the rows
// themselves are immutable once stored.
func (i *Index) Rows() [][]float32 {
	return i.rows[:len(i.rows):len(i.rows)]
}

// Search ranks all stored rows against query and returns the top k hits,
// highest score first, ties broken by lower insertion index. k is clamped to
// the number of candidate rows. A non-nil allow predicate restricts the
// candidate set by row index.
func (i *Index) Search(query []float32, k int, allow func(idx int) bool) ([]Hit, error) {
	if len(query) != i.dim {
		return nil, fmt.Errorf("vectorindex: query has dimension %d, index expects %d: %w",
			len(query), i.dim, appErr.ErrDimensionMismatch)
	}
	unit, err := normalize(query)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", err)
	}
	hits := make([]Hit, 0, len(i.rows))
	for idx, row := range i.rows {
		if allow != nil && !allow(idx) {
			continue
		}
		hits = append(hits, Hit{Index: idx, Score: dot(unit, row)})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Index < hits[b].Index
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// normalize returns a unit-length copy of vec. A numerically-zero norm is
// rejected: such a vector carries no direction and would turn scores into
// NaN/Inf.
func normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("zero-magnitude vector: %w", appErr.ErrInvalid)
	}
	out := make([]float32, len(vec))
	inv := 1 / norm
	for n, v := range vec {
		out[n] = float32(float64(v) * inv)
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	var sum float64
	for n := range a {
		sum += float64(a[n]) * float64(b[n])
	}
	return float32(sum)
}
