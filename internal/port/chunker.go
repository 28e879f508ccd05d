package port

// Chunker splits raw document text into an ordered sequence of chunks.
type Chunker interface {
	Chunk(text string) ([]string, error)
}
