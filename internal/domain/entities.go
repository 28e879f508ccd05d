package domain

// Metadata is the per-chunk attribute record used for filtered retrieval.
// Values are scalars (string, bool, or numeric) as produced at chunking time
// or decoded from a persisted bundle.
type Metadata map[string]any

// Hit is a single vector index search result: the position of a document in
// the indexed sequence and its similarity to the query.
type Hit struct {
	ID    int
	Score float32
}

// ChunkBundle is the persisted chunk + metadata artifact. Chunks and
// Metadata are index-aligned; Metadata is empty when metadata is disabled.
type ChunkBundle struct {
	Chunks           []string   `json:"chunks"`
	Metadata         []Metadata `json:"metadata,omitempty"`
	TotalChunks      int        `json:"total_chunks"`
	ChunkingStrategy string     `json:"chunking_strategy"`
	ChunkSize        int        `json:"chunk_size"`
	ChunkOverlap     int        `json:"chunk_overlap"`
}

// Manifest records how a persisted index was built.
type Manifest struct {
	EmbedModel       string `json:"embed_model"`
	GeneratorModel   string `json:"generator_model"`
	TopK             int    `json:"top_k"`
	ChunkingStrategy string `json:"chunking_strategy"`
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	TotalChunks      int    `json:"total_chunks"`
	MetadataEnabled  bool   `json:"metadata_enabled"`
	CreatedAt        string `json:"created_at"`
}
