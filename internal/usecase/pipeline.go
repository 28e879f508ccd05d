package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"ragcore/internal/adapter/cache"
	"ragcore/internal/adapter/fs"
	"ragcore/internal/adapter/index"
	"ragcore/internal/domain"
	"ragcore/internal/port"
)

// ErrDocumentNotFound reports a missing source document. The error is fatal
// for the operation that hit it, but the previously installed retrieval
// state stays untouched, so a failed reload never takes retrieval offline.
var ErrDocumentNotFound = errors.New("source document not found")

// NoRelevantInformation is returned by Answer when retrieval comes back
// empty; the generator is not invoked in that case.
const NoRelevantInformation = "No relevant information found."

// StageHook instruments a pipeline stage: it is called with the stage name
// and returns a function invoked when the stage completes. The pipeline
// behaves identically with no hook installed.
type StageHook func(stage string) func()

// LatencyHook returns a StageHook that logs per-stage latency.
func LatencyHook(logger *slog.Logger) StageHook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(stage string) func() {
		start := time.Now()
		return func() {
			logger.Info("latency",
				"stage", stage,
				"latency_ms", float64(time.Since(start).Microseconds())/1000,
			)
		}
	}
}

// PipelineOptions carries the configuration the pipeline needs beyond its
// collaborators. Hook, Cache, Walker, and Progress are optional.
type PipelineOptions struct {
	ChunkSize        int
	ChunkOverlap     int
	ChunkingStrategy string
	TopK             int
	EnableMetadata   bool
	EmbedModel       string
	GeneratorModel   string

	Hook     StageHook
	Cache    *cache.ContextCache
	Walker   *fs.Walker
	Progress ProgressFunc
	Logger   *slog.Logger
}

// Pipeline orchestrates chunking, embedding, indexing, persistence, and
// answering. All collaborators are explicit constructor arguments; nothing
// lives in package state, so independent pipelines can coexist.
type Pipeline struct {
	retriever *Retriever
	generator port.Generator
	chunker   port.Chunker
	artifacts port.ArtifactStore
	opts      PipelineOptions
	logger    *slog.Logger
}

func NewPipeline(retriever *Retriever, generator port.Generator, chunker port.Chunker, artifacts port.ArtifactStore, opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		retriever: retriever,
		generator: generator,
		chunker:   chunker,
		artifacts: artifacts,
		opts:      opts,
		logger:    logger,
	}
}

// Retriever exposes the pipeline's retriever for retrieval-only callers.
func (p *Pipeline) Retriever() *Retriever {
	return p.retriever
}

type sourceDoc struct {
	path string
	text string
}

// LoadFromFile installs retrieval state for a single source document:
// from persisted artifacts when they exist and are current, otherwise by
// chunking, embedding, indexing, and persisting.
func (p *Pipeline) LoadFromFile(path string, forceRebuild bool) error {
	src, err := readSource(path)
	if err != nil {
		return err
	}
	return p.load([]sourceDoc{src}, forceRebuild)
}

// LoadFromDir builds over every document the walker selects under root.
func (p *Pipeline) LoadFromDir(root string, forceRebuild bool) error {
	walker := p.opts.Walker
	if walker == nil {
		walker = fs.NewWalker(nil, nil)
	}

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, root)
		}
		return fmt.Errorf("failed to stat %s: %w", root, err)
	}

	paths, err := walker.Walk(root)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: no documents under %s", ErrDocumentNotFound, root)
	}

	sources := make([]sourceDoc, 0, len(paths))
	for _, path := range paths {
		src, err := readSource(path)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}
	return p.load(sources, forceRebuild)
}

// LoadArtifacts installs retrieval state from persisted artifacts alone,
// without consulting any source document.
func (p *Pipeline) LoadArtifacts() error {
	if p.artifacts == nil || !p.artifacts.HasArtifacts() {
		return fmt.Errorf("no persisted artifacts found; run a build first")
	}
	return p.loadArtifacts()
}

// Answer retrieves context for the question and hands it to the generator.
// Empty retrieval yields the fixed sentinel without touching the generator.
func (p *Pipeline) Answer(question string, filters map[string]any) (string, error) {
	context, hit := p.cachedContext(question, filters)
	if !hit {
		stop := p.track("retrieval")
		var err error
		context, err = p.retriever.Retrieve(question, filters)
		stop()
		if err != nil {
			return "", err
		}
		if p.opts.Cache != nil {
			p.opts.Cache.Put(question, filters, context)
		}
	}

	if len(context) == 0 {
		return NoRelevantInformation, nil
	}

	if p.generator == nil {
		return "", fmt.Errorf("no generator configured")
	}

	stop := p.track("generation")
	answer, err := p.generator.Generate(question, context)
	stop()
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return answer, nil
}

func (p *Pipeline) cachedContext(question string, filters map[string]any) ([]string, bool) {
	if p.opts.Cache == nil {
		return nil, false
	}
	return p.opts.Cache.Get(question, filters)
}

func (p *Pipeline) load(sources []sourceDoc, forceRebuild bool) error {
	if !forceRebuild && p.artifacts != nil && p.artifacts.HasArtifacts() && !p.artifactsStale() {
		err := p.loadArtifacts()
		if err == nil {
			return nil
		}
		// Corrupt or mismatched artifacts never install partial state;
		// the source is still here, so rebuild from it.
		p.logger.Warn("artifact_load_failed_rebuilding", "error", err)
	}
	return p.rebuild(sources)
}

// artifactsStale reports whether the persisted manifest disagrees with the
// current chunking parameters, in which case the artifacts cannot be reused.
func (p *Pipeline) artifactsStale() bool {
	m, err := p.artifacts.GetManifest()
	if err != nil {
		return true
	}
	return m.ChunkSize != p.opts.ChunkSize ||
		m.ChunkOverlap != p.opts.ChunkOverlap ||
		m.ChunkingStrategy != p.opts.ChunkingStrategy ||
		m.MetadataEnabled != p.opts.EnableMetadata
}

func (p *Pipeline) loadArtifacts() error {
	blob, err := p.artifacts.GetIndex()
	if err != nil {
		return err
	}
	idx, err := index.Deserialize(blob)
	if err != nil {
		return err
	}
	bundle, err := p.artifacts.GetBundle()
	if err != nil {
		return err
	}

	if err := p.retriever.Load(idx, bundle.Chunks, bundle.Metadata); err != nil {
		return err
	}
	if p.opts.Cache != nil {
		p.opts.Cache.Invalidate()
	}

	p.logger.Info("index_loaded",
		"documents", len(bundle.Chunks),
		"index_kind", idx.Kind(),
	)
	return nil
}

func (p *Pipeline) rebuild(sources []sourceDoc) error {
	stop := p.track("chunking")
	var chunks []string
	var metadata []domain.Metadata

	for _, src := range sources {
		cs, err := p.chunker.Chunk(src.text)
		if err != nil {
			stop()
			return fmt.Errorf("failed to chunk %s: %w", src.path, err)
		}
		if p.opts.EnableMetadata {
			for _, chunk := range cs {
				metadata = append(metadata, domain.Metadata{
					"chunk_id":   len(metadata),
					"source":     src.path,
					"chunk_size": utf8.RuneCountInString(chunk),
					"strategy":   p.opts.ChunkingStrategy,
				})
			}
		}
		chunks = append(chunks, cs...)
	}
	stop()

	if len(chunks) == 0 {
		return fmt.Errorf("no chunks produced from %d source document(s)", len(sources))
	}

	stop = p.track("indexing")
	err := p.retriever.Build(chunks, metadata, p.opts.Progress)
	stop()
	if err != nil {
		return err
	}
	if p.opts.Cache != nil {
		p.opts.Cache.Invalidate()
	}

	return p.persist(chunks, metadata)
}

func (p *Pipeline) persist(chunks []string, metadata []domain.Metadata) error {
	if p.artifacts == nil {
		return nil
	}

	blob, err := p.retriever.SerializeIndex()
	if err != nil {
		return fmt.Errorf("failed to serialize index: %w", err)
	}
	if err := p.artifacts.PutIndex(blob); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	bundle := domain.ChunkBundle{
		Chunks:           chunks,
		Metadata:         metadata,
		TotalChunks:      len(chunks),
		ChunkingStrategy: p.opts.ChunkingStrategy,
		ChunkSize:        p.opts.ChunkSize,
		ChunkOverlap:     p.opts.ChunkOverlap,
	}
	if err := p.artifacts.PutBundle(bundle); err != nil {
		return fmt.Errorf("failed to persist chunk bundle: %w", err)
	}

	manifest := domain.Manifest{
		EmbedModel:       p.opts.EmbedModel,
		GeneratorModel:   p.opts.GeneratorModel,
		TopK:             p.opts.TopK,
		ChunkingStrategy: p.opts.ChunkingStrategy,
		ChunkSize:        p.opts.ChunkSize,
		ChunkOverlap:     p.opts.ChunkOverlap,
		TotalChunks:      len(chunks),
		MetadataEnabled:  p.opts.EnableMetadata,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.artifacts.PutManifest(manifest); err != nil {
		return fmt.Errorf("failed to persist manifest: %w", err)
	}
	return nil
}

func (p *Pipeline) track(stage string) func() {
	if p.opts.Hook == nil {
		return func() {}
	}
	return p.opts.Hook(stage)
}

func readSource(path string) (sourceDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sourceDoc{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return sourceDoc{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sourceDoc{path: path, text: string(data)}, nil
}
