package port

// Embedder generates vector embeddings for text.
//
// Implementations must return L2-normalized vectors so that inner product
// over stored vectors equals cosine similarity.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
