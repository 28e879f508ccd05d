package port

import "ragcore/internal/domain"

// VectorIndex stores embedding vectors and answers nearest-neighbor queries.
// Hit IDs are positions into the document sequence the index was built from;
// keeping that alignment is the caller's responsibility across rebuilds and
// reloads.
type VectorIndex interface {
	// Search returns up to k hits ranked by descending similarity,
	// ties broken by lowest id.
	Search(query []float32, k int) ([]domain.Hit, error)

	// Ntotal returns the number of stored vectors.
	Ntotal() int

	// Dim returns the vector dimension.
	Dim() int

	// Kind identifies the index variant ("flat" or "ivf").
	Kind() string

	// Serialize encodes the full index state for persistence.
	Serialize() ([]byte, error)
}
