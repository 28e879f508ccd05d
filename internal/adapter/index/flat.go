package index

import (
	"fmt"
	"sort"

	"ragcore/internal/domain"
)

// FlatIndex is the exact variant: a brute-force inner product scan over all
// stored vectors. Vectors are expected to be L2-normalized, so inner product
// equals cosine similarity.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlat builds an exact index over the given embeddings.
func NewFlat(embeddings [][]float32) (*FlatIndex, error) {
	dim, err := checkDims(embeddings)
	if err != nil {
		return nil, err
	}
	return &FlatIndex{dim: dim, vectors: embeddings}, nil
}

func (ix *FlatIndex) Search(query []float32, k int) ([]domain.Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", ix.dim, len(query))
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}

	hits := make([]domain.Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = domain.Hit{ID: i, Score: dot(query, v)}
	}
	rankHits(hits)

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (ix *FlatIndex) Ntotal() int { return len(ix.vectors) }

func (ix *FlatIndex) Dim() int { return ix.dim }

func (ix *FlatIndex) Kind() string { return KindFlat }

// rankHits orders by descending score, ties broken by lowest id.
func rankHits(hits []domain.Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func checkDims(embeddings [][]float32) (int, error) {
	if len(embeddings) == 0 {
		return 0, fmt.Errorf("no embeddings to index")
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return 0, fmt.Errorf("zero-dimension embedding at position 0")
	}
	for i, v := range embeddings {
		if len(v) != dim {
			return 0, fmt.Errorf("embedding dimension mismatch at position %d: expected %d, got %d", i, dim, len(v))
		}
	}
	return dim, nil
}
