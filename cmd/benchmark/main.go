// Retrieval benchmark: load persisted artifacts and inspect how the index
// scores a query. Prints per-hit similarity plus centroid drift so embedding
// and index quality can be judged without the generation layer.
//
// Usage: go run cmd/benchmark/main.go -dir ./corpus -q "query"
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"ragcore/config"
	"ragcore/internal/adapter/embedding"
	"ragcore/internal/adapter/index"
	"ragcore/internal/adapter/store"
	"ragcore/internal/port"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding the .rag artifacts")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir ./corpus -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index shape (kind, dimension, vector count)")
		fmt.Println("  2. Top-k similarity scores for the query")
		fmt.Println("  3. Centroid drift (how far the query sits from the corpus)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	artifacts, err := store.NewBoltArtifactStore(config.ArtifactsPath(*dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening artifacts: %v\n", err)
		os.Exit(1)
	}
	defer artifacts.Close()

	if !artifacts.HasArtifacts() {
		fmt.Fprintln(os.Stderr, "No artifacts found; run 'ragcore build' first")
		os.Exit(1)
	}

	blob, err := artifacts.GetIndex()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading index: %v\n", err)
		os.Exit(1)
	}
	idx, err := index.Deserialize(blob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding index: %v\n", err)
		os.Exit(1)
	}
	bundle, err := artifacts.GetBundle()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading chunks: %v\n", err)
		os.Exit(1)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating embedder: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Index kind: %s\n", idx.Kind())
	fmt.Printf("Vectors:    %d (dim %d)\n", idx.Ntotal(), idx.Dim())
	fmt.Printf("Model:      %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Println()

	fmt.Printf("Query: %q\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	vecs, err := embedder.Embed([]string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error embedding query: %v\n", err)
		os.Exit(1)
	}
	queryVec := vecs[0]

	hits, err := idx.Search(queryVec, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error searching index: %v\n", err)
		os.Exit(1)
	}

	for i, hit := range hits {
		snippet := ""
		if hit.ID >= 0 && hit.ID < len(bundle.Chunks) {
			snippet = bundle.Chunks[hit.ID]
		}
		snippet = strings.ReplaceAll(snippet, "\n", " ")
		if len(snippet) > 80 {
			snippet = snippet[:80] + "..."
		}
		fmt.Printf("%2d. score=%.4f  %s\n", i+1, hit.Score, snippet)
	}

	drift := centroidDrift(queryVec, bundle.Chunks, embedder)
	fmt.Println()
	fmt.Printf("Centroid drift: %.4f  (0 = at corpus center, 2 = opposite)\n", drift)
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model)
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func centroidDrift(queryVec []float32, chunks []string, embedder port.Embedder) float64 {
	if len(chunks) == 0 {
		return 0
	}
	vecs, err := embedder.Embed(chunks)
	if err != nil || len(vecs) == 0 {
		return 0
	}
	dim := len(vecs[0])
	centroid := make([]float32, dim)
	sums := make([]float64, dim)
	for _, v := range vecs {
		for i, x := range v {
			sums[i] += float64(x)
		}
	}
	for i := range centroid {
		centroid[i] = float32(sums[i] / float64(len(vecs)))
	}
	embedding.Normalize(centroid)

	var dot float64
	for i := range queryVec {
		dot += float64(queryVec[i]) * float64(centroid[i])
	}
	return 1 - dot
}
