package usecase

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"ragcore/internal/adapter/index"
	"ragcore/internal/domain"
	"ragcore/internal/port"
)

// embedBatchSize is how many documents go into one embedder call during a
// build, which is also the granularity of progress reporting.
const embedBatchSize = 64

// ProgressFunc reports build progress after each embedded batch.
type ProgressFunc func(done, total int)

// Retriever owns the retrieval state: the vector index and the parallel
// document/metadata sequences. Index position i always corresponds to
// documents[i] and metadata[i]; the three fields are only ever replaced
// together, under the write lock, by Build or Load.
type Retriever struct {
	embedder       port.Embedder
	topK           int
	enableMetadata bool
	indexOpts      index.Options
	logger         *slog.Logger

	mu        sync.RWMutex
	index     port.VectorIndex
	documents []string
	metadata  []domain.Metadata
	centroid  []float32
}

func NewRetriever(embedder port.Embedder, topK int, enableMetadata bool, indexOpts index.Options, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:       embedder,
		topK:           topK,
		enableMetadata: enableMetadata,
		indexOpts:      indexOpts,
		logger:         logger,
	}
}

// Build embeds all documents, constructs a vector index for them, and
// atomically swaps in the new retrieval state. progress may be nil.
func (r *Retriever) Build(documents []string, metadata []domain.Metadata, progress ProgressFunc) error {
	if len(documents) == 0 {
		return fmt.Errorf("no documents to index")
	}
	if len(metadata) > 0 && len(metadata) != len(documents) {
		return fmt.Errorf("metadata misaligned: %d records for %d documents", len(metadata), len(documents))
	}

	embeddings, err := r.embedBatches(documents, progress)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	idx, err := index.Build(embeddings, r.indexOpts, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	r.mu.Lock()
	r.index = idx
	r.documents = documents
	r.metadata = metadata
	r.mu.Unlock()

	r.logger.Info("index_built",
		"documents_indexed", len(documents),
		"index_kind", idx.Kind(),
		"metadata_enabled", r.enableMetadata,
	)
	return nil
}

// Load installs a previously persisted index without re-embedding.
func (r *Retriever) Load(idx port.VectorIndex, documents []string, metadata []domain.Metadata) error {
	if idx.Ntotal() != len(documents) {
		return fmt.Errorf("index holds %d vectors for %d documents", idx.Ntotal(), len(documents))
	}
	if len(metadata) > 0 && len(metadata) != len(documents) {
		return fmt.Errorf("metadata misaligned: %d records for %d documents", len(metadata), len(documents))
	}

	r.mu.Lock()
	r.index = idx
	r.documents = documents
	r.metadata = metadata
	r.mu.Unlock()
	return nil
}

// Retrieve returns up to topK documents ranked by similarity to the query,
// restricted by the metadata filters when given. An unbuilt retriever
// returns an empty result, not an error. Filter rejection can shrink the
// result below topK; that is not an error either.
func (r *Retriever) Retrieve(query string, filters map[string]any) ([]string, error) {
	r.mu.RLock()
	built := r.index != nil
	r.mu.RUnlock()
	if !built {
		return nil, nil
	}

	q, err := r.embedOne(query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return nil, nil
	}

	// Over-fetch when filtering so rejected candidates still leave enough
	// to fill topK. A heavily filtered corpus can exhaust even this.
	k := r.topK
	if len(filters) > 0 && len(r.metadata) > 0 {
		k = r.topK * 3
	}

	hits, err := r.index.Search(q, k)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	var results []string
	for _, hit := range hits {
		if hit.ID < 0 || hit.ID >= len(r.documents) {
			continue
		}
		if len(filters) > 0 && len(r.metadata) > 0 && hit.ID < len(r.metadata) {
			if !matchesFilters(r.metadata[hit.ID], filters) {
				continue
			}
		}
		results = append(results, r.documents[hit.ID])
		if len(results) >= r.topK {
			break
		}
	}
	return results, nil
}

// ComputeCentroid re-embeds the current document set and stores the mean
// embedding as the drift baseline. It is never triggered automatically;
// call it after any corpus change that should move the baseline.
func (r *Retriever) ComputeCentroid() error {
	r.mu.RLock()
	documents := r.documents
	r.mu.RUnlock()

	if len(documents) == 0 {
		r.logger.Warn("compute_centroid_skipped", "reason", "no documents loaded")
		return nil
	}

	embeddings, err := r.embedBatches(documents, nil)
	if err != nil {
		return fmt.Errorf("failed to embed documents for centroid: %w", err)
	}

	dim := len(embeddings[0])
	sums := make([]float64, dim)
	for _, v := range embeddings {
		for d, x := range v {
			sums[d] += float64(x)
		}
	}
	centroid := make([]float32, dim)
	for d := range sums {
		centroid[d] = float32(sums[d] / float64(len(embeddings)))
	}

	r.mu.Lock()
	r.centroid = centroid
	r.mu.Unlock()

	r.logger.Info("centroid_computed", "dimension", dim, "total_docs", len(documents))
	return nil
}

// ComputeDrift scores how far a query sits from the corpus centroid:
// 1 - cosine similarity, rounded to 4 decimals. Returns 0.0 when no
// centroid has been computed. Advisory only; never gates retrieval.
func (r *Retriever) ComputeDrift(query string) (float64, error) {
	r.mu.RLock()
	centroid := r.centroid
	r.mu.RUnlock()

	if centroid == nil {
		return 0.0, nil
	}

	q, err := r.embedOne(query)
	if err != nil {
		return 0, fmt.Errorf("failed to embed query: %w", err)
	}

	var similarity float64
	for i := range q {
		similarity += float64(q[i]) * float64(centroid[i])
	}

	drift := 1.0 - similarity
	return math.Round(drift*10000) / 10000, nil
}

// SerializeIndex snapshots the current index for persistence.
func (r *Retriever) SerializeIndex() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return nil, fmt.Errorf("no index built")
	}
	return r.index.Serialize()
}

// DocumentCount returns the number of indexed documents.
func (r *Retriever) DocumentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents)
}

// IndexKind returns the active index variant, or "" before any build.
func (r *Retriever) IndexKind() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return ""
	}
	return r.index.Kind()
}

func (r *Retriever) embedOne(text string) ([]float32, error) {
	embeddings, err := r.embedder.Embed([]string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	return embeddings[0], nil
}

func (r *Retriever) embedBatches(texts []string, progress ProgressFunc) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		embeddings, err := r.embedder.Embed(texts[i:end])
		if err != nil {
			return nil, err
		}
		if len(embeddings) != end-i {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), end-i)
		}
		all = append(all, embeddings...)
		if progress != nil {
			progress(end, len(texts))
		}
	}
	return all, nil
}
