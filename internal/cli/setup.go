package cli

import (
	"fmt"
	"time"

	"ragcore/config"
	"ragcore/internal/adapter/cache"
	"ragcore/internal/adapter/chunker"
	"ragcore/internal/adapter/embedding"
	"ragcore/internal/adapter/fs"
	"ragcore/internal/adapter/generation"
	"ragcore/internal/adapter/index"
	"ragcore/internal/adapter/store"
	"ragcore/internal/port"
	"ragcore/internal/usecase"
)

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.BaseURL != "" {
			return embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL)
		}
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model)
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func newGenerator(cfg *config.Config) (port.Generator, error) {
	return generation.NewOpenAIGenerator(
		cfg.Generation.Provider,
		cfg.Generation.Model,
		cfg.Generation.APIKeyEnv,
		cfg.Generation.MaxTokens,
	)
}

// newPipeline wires the full stack from config. The caller owns the returned
// store and must Close it. withGenerator is false for retrieval-only commands
// so they work without a generation API key.
func newPipeline(cfg *config.Config, dir string, withGenerator bool, progress usecase.ProgressFunc) (*usecase.Pipeline, *store.BoltArtifactStore, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if e, ok := embedder.(*embedding.OpenAIEmbedder); ok && cfg.Embedding.BatchSize > 0 {
		e.SetBatchSize(cfg.Embedding.BatchSize)
	}

	var generator port.Generator
	if withGenerator {
		generator, err = newGenerator(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create generator: %w", err)
		}
	}

	if err := config.EnsureRAGDir(dir); err != nil {
		return nil, nil, fmt.Errorf("failed to create .rag directory: %w", err)
	}
	artifacts, err := store.NewBoltArtifactStore(config.ArtifactsPath(dir))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	strategy := chunker.Strategy(cfg.Chunking.Strategy)
	if !chunker.ValidStrategy(cfg.Chunking.Strategy) {
		artifacts.Close()
		return nil, nil, fmt.Errorf("unknown chunking strategy: %s", cfg.Chunking.Strategy)
	}
	chk := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap, strategy, logger)

	retriever := usecase.NewRetriever(embedder, cfg.Retrieve.TopK, cfg.Retrieve.EnableMetadata, index.Options{
		Nlist:  cfg.Index.Nlist,
		Nprobe: cfg.Index.Nprobe,
		UseGPU: cfg.Index.UseGPU,
	}, logger)

	var ctxCache *cache.ContextCache
	if cfg.Cache.Enabled {
		ctxCache = cache.NewContextCache(cfg.Cache.MaxSize, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}

	generatorModel := ""
	if generator != nil {
		generatorModel = generator.ModelName()
	}

	pipeline := usecase.NewPipeline(retriever, generator, chk, artifacts, usecase.PipelineOptions{
		ChunkSize:        cfg.Chunking.Size,
		ChunkOverlap:     cfg.Chunking.Overlap,
		ChunkingStrategy: cfg.Chunking.Strategy,
		TopK:             cfg.Retrieve.TopK,
		EnableMetadata:   cfg.Retrieve.EnableMetadata,
		EmbedModel:       embedder.ModelName(),
		GeneratorModel:   generatorModel,
		Hook:             usecase.LatencyHook(logger),
		Cache:            ctxCache,
		Walker:           fs.NewWalker(cfg.Sources.Includes, cfg.Sources.Excludes),
		Progress:         progress,
		Logger:           logger,
	})
	return pipeline, artifacts, nil
}
