package usecase

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ragcore/internal/adapter/cache"
	"ragcore/internal/adapter/chunker"
	"ragcore/internal/adapter/embedding"
	"ragcore/internal/adapter/index"
	"ragcore/internal/adapter/store"
)

// echoGenerator returns a canned answer and records its calls. The
// dispatcher invokes it from multiple goroutines, so the recorded state
// is guarded by a mutex.
type echoGenerator struct {
	answer string
	err    error

	mu      sync.Mutex
	calls   int
	context []string
}

func (g *echoGenerator) Generate(question string, context []string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.context = context
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *echoGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *echoGenerator) lastContext() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.context
}

func (g *echoGenerator) ModelName() string { return "echo" }

type pipelineFixture struct {
	pipeline  *Pipeline
	retriever *Retriever
	generator *echoGenerator
	artifacts *store.BoltArtifactStore
	cache     *cache.ContextCache
}

func newPipelineFixture(t *testing.T, dir string) *pipelineFixture {
	t.Helper()

	artifacts, err := store.NewBoltArtifactStore(filepath.Join(dir, "artifacts.db"))
	if err != nil {
		t.Fatalf("failed to open artifact store: %v", err)
	}
	t.Cleanup(func() { artifacts.Close() })

	embedder := embedding.NewMockEmbedder(256)
	retriever := NewRetriever(embedder, 3, true, index.Options{Nlist: 128}, nil)
	generator := &echoGenerator{answer: "the answer"}
	chk := chunker.New(80, 10, chunker.StrategySentence, nil)
	ctxCache := cache.NewContextCache(10, time.Minute)

	pipeline := NewPipeline(retriever, generator, chk, artifacts, PipelineOptions{
		ChunkSize:        80,
		ChunkOverlap:     10,
		ChunkingStrategy: "sentence",
		TopK:             3,
		EnableMetadata:   true,
		EmbedModel:       embedder.ModelName(),
		GeneratorModel:   generator.ModelName(),
		Cache:            ctxCache,
	})
	return &pipelineFixture{
		pipeline:  pipeline,
		retriever: retriever,
		generator: generator,
		artifacts: artifacts,
		cache:     ctxCache,
	}
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const franceDoc = `Paris is the capital of France. France is in western Europe.
The Eiffel Tower stands in Paris. French cuisine is world famous.
Germany borders France to the east. Berlin is the capital of Germany.`

func TestLoadFromFile_BuildsAndRetrieves(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.retriever.DocumentCount() == 0 {
		t.Fatal("expected indexed chunks")
	}

	answer, err := f.pipeline.Answer("What is the capital of France?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "the answer" {
		t.Errorf("expected generator answer verbatim, got %q", answer)
	}
	if n := f.generator.callCount(); n != 1 {
		t.Errorf("expected 1 generation call, got %d", n)
	}
	joined := strings.Join(f.generator.lastContext(), "\n")
	if !strings.Contains(joined, "capital of France") {
		t.Errorf("expected relevant context, got %q", joined)
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)

	err := f.pipeline.LoadFromFile(filepath.Join(dir, "absent.txt"), false)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestLoadFromFile_MissingFileKeepsPriorState(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := f.retriever.DocumentCount()

	err := f.pipeline.LoadFromFile(filepath.Join(dir, "absent.txt"), true)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if f.retriever.DocumentCount() != before {
		t.Errorf("prior retrieval state lost: %d chunks, had %d", f.retriever.DocumentCount(), before)
	}
}

func TestLoadFromFile_ArtifactFastPath(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, err := f.retriever.Retrieve("capital of France", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A fresh pipeline over the same store loads from artifacts and must
	// retrieve identically.
	f2 := newPipelineFixtureSharedStore(t, f.artifacts)
	if err := f2.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := f2.retriever.Retrieve("capital of France", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("result count mismatch: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d mismatch: %q vs %q", i, got[i], want[i])
		}
	}
}

func newPipelineFixtureSharedStore(t *testing.T, artifacts *store.BoltArtifactStore) *pipelineFixture {
	t.Helper()
	embedder := embedding.NewMockEmbedder(256)
	retriever := NewRetriever(embedder, 3, true, index.Options{Nlist: 128}, nil)
	generator := &echoGenerator{answer: "the answer"}
	chk := chunker.New(80, 10, chunker.StrategySentence, nil)

	pipeline := NewPipeline(retriever, generator, chk, artifacts, PipelineOptions{
		ChunkSize:        80,
		ChunkOverlap:     10,
		ChunkingStrategy: "sentence",
		TopK:             3,
		EnableMetadata:   true,
		EmbedModel:       embedder.ModelName(),
		GeneratorModel:   generator.ModelName(),
	})
	return &pipelineFixture{pipeline: pipeline, retriever: retriever, generator: generator, artifacts: artifacts}
}

func TestLoadFromFile_StaleManifestTriggersRebuild(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// New pipeline with different chunking parameters over the same store:
	// the persisted manifest no longer matches, so artifacts are rebuilt.
	embedder := embedding.NewMockEmbedder(256)
	retriever := NewRetriever(embedder, 3, true, index.Options{Nlist: 128}, nil)
	chk := chunker.New(40, 5, chunker.StrategySimple, nil)
	pipeline := NewPipeline(retriever, &echoGenerator{}, chk, f.artifacts, PipelineOptions{
		ChunkSize:        40,
		ChunkOverlap:     5,
		ChunkingStrategy: "simple",
		TopK:             3,
		EnableMetadata:   true,
	})

	if err := pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := f.artifacts.GetManifest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ChunkSize != 40 || m.ChunkingStrategy != "simple" {
		t.Errorf("manifest not rebuilt: size=%d strategy=%s", m.ChunkSize, m.ChunkingStrategy)
	}
}

func TestLoadFromFile_CorruptIndexRebuilds(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.artifacts.PutIndex([]byte("garbage")); err != nil {
		t.Fatal(err)
	}

	f2 := newPipelineFixtureSharedStore(t, f.artifacts)
	if err := f2.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("expected rebuild from source, got error: %v", err)
	}
	if f2.retriever.DocumentCount() == 0 {
		t.Fatal("expected rebuilt retrieval state")
	}

	// The rebuilt index blob must be valid again.
	blob, err := f.artifacts.GetIndex()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := index.Deserialize(blob); err != nil {
		t.Errorf("persisted index still corrupt after rebuild: %v", err)
	}
}

func TestLoadFromFile_ForceRebuildSkipsArtifacts(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := f.artifacts.GetManifest()
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(1100 * time.Millisecond) // CreatedAt has second resolution
	if err := f.pipeline.LoadFromFile(path, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.artifacts.GetManifest()
	if err != nil {
		t.Fatal(err)
	}
	if first.CreatedAt == second.CreatedAt {
		t.Error("expected force rebuild to write a fresh manifest")
	}
}

func TestLoadFromDir_IndexesMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	writeDoc(t, dir, "a.txt", "Alpha document about apples.")
	writeDoc(t, dir, "b.txt", "Beta document about bananas.")

	if err := f.pipeline.LoadFromDir(dir, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.retriever.DocumentCount() < 2 {
		t.Errorf("expected chunks from both files, got %d", f.retriever.DocumentCount())
	}
}

func TestLoadFromDir_MissingRoot(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)

	err := f.pipeline.LoadFromDir(filepath.Join(dir, "absent"), false)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestAnswer_EmptyRetrievalReturnsSentinel(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)

	// Nothing built: retrieval is empty, the generator must not run.
	answer, err := f.pipeline.Answer("anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != NoRelevantInformation {
		t.Errorf("expected sentinel answer, got %q", answer)
	}
	if n := f.generator.callCount(); n != 0 {
		t.Errorf("generator invoked on empty retrieval: %d calls", n)
	}
}

func TestAnswer_GeneratorErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)
	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.generator.err = fmt.Errorf("upstream down")
	if _, err := f.pipeline.Answer("capital of France", nil); err == nil {
		t.Fatal("expected generation error to propagate")
	}
}

func TestAnswer_ContextCachedAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)
	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.pipeline.Answer("capital of France", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.cache.Size() != 1 {
		t.Fatalf("expected 1 cached context, got %d", f.cache.Size())
	}
	if _, err := f.pipeline.Answer("capital of France", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same cached context, but the generator still runs each time.
	if n := f.generator.callCount(); n != 2 {
		t.Errorf("expected 2 generation calls, got %d", n)
	}
}

func TestRebuild_WritesManifest(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := f.artifacts.GetManifest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.EmbedModel != "mock" {
		t.Errorf("expected embed model mock, got %q", m.EmbedModel)
	}
	if m.GeneratorModel != "echo" {
		t.Errorf("expected generator model echo, got %q", m.GeneratorModel)
	}
	if m.ChunkingStrategy != "sentence" || m.ChunkSize != 80 || m.ChunkOverlap != 10 {
		t.Errorf("chunking parameters not recorded: %+v", m)
	}
	if m.TotalChunks != f.retriever.DocumentCount() {
		t.Errorf("manifest chunks %d, retriever has %d", m.TotalChunks, f.retriever.DocumentCount())
	}
	if _, err := time.Parse(time.RFC3339, m.CreatedAt); err != nil {
		t.Errorf("created_at not RFC3339: %q", m.CreatedAt)
	}
}

func TestRebuild_AttachesChunkMetadata(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bundle, err := f.artifacts.GetBundle()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.Metadata) != len(bundle.Chunks) {
		t.Fatalf("metadata misaligned: %d records for %d chunks", len(bundle.Metadata), len(bundle.Chunks))
	}
	for i, meta := range bundle.Metadata {
		if meta["chunk_id"] != float64(i) { // JSON round trip turns ints into float64
			t.Errorf("chunk %d: unexpected chunk_id %v", i, meta["chunk_id"])
		}
		if meta["source"] != path {
			t.Errorf("chunk %d: unexpected source %v", i, meta["source"])
		}
		if meta["strategy"] != "sentence" {
			t.Errorf("chunk %d: unexpected strategy %v", i, meta["strategy"])
		}
	}

	// Filters over the attached metadata work end to end.
	results, err := f.retriever.Retrieve("France", map[string]any{"chunk_id": map[string]any{"$gte": 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Error("expected filtered retrieval to return results")
	}
}

func TestRebuild_EmptySourceFails(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "empty.txt", "   \n  ")

	if err := f.pipeline.LoadFromFile(path, false); err == nil {
		t.Fatal("expected error for a source that yields no chunks")
	}
}

func TestLoadArtifacts_WithoutBuild(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)

	if err := f.pipeline.LoadArtifacts(); err == nil {
		t.Fatal("expected error without persisted artifacts")
	}
}

func TestLatencyHook_NilSafe(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir) // fixture has no hook installed
	path := writeDoc(t, dir, "doc.txt", franceDoc)

	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("pipeline without hook failed: %v", err)
	}

	// And with the hook installed the stages still run normally.
	stop := LatencyHook(nil)("retrieval")
	stop()
}
