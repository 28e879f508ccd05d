package index

import "testing"

func TestBuild_SmallCorpusGetsFlat(t *testing.T) {
	embeddings := clusteredVectors(8, 4, 2) // 8 vectors
	ix, err := Build(embeddings, Options{Nlist: 16}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ix.Kind() != KindFlat {
		t.Errorf("expected flat index for corpus below nlist, got %s", ix.Kind())
	}
	if ix.Ntotal() != 8 {
		t.Errorf("expected 8 vectors, got %d", ix.Ntotal())
	}
}

func TestBuild_LargeCorpusGetsIVF(t *testing.T) {
	embeddings := clusteredVectors(8, 4, 6) // 24 vectors
	ix, err := Build(embeddings, Options{Nlist: 4, Nprobe: 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ix.Kind() != KindIVF {
		t.Errorf("expected ivf index for corpus at or above nlist, got %s", ix.Kind())
	}
}

func TestBuild_DegenerateCorpusFallsBackToFlat(t *testing.T) {
	// Enough vectors for IVF but nearly all duplicates: training cannot
	// converge, so the build falls back to an exact index.
	same := unit(4, 0)
	embeddings := make([][]float32, 10)
	for i := range embeddings {
		embeddings[i] = same
	}

	ix, err := Build(embeddings, Options{Nlist: 4}, nil)
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if ix.Kind() != KindFlat {
		t.Errorf("expected flat fallback, got %s", ix.Kind())
	}
	if ix.Ntotal() != 10 {
		t.Errorf("expected all 10 vectors retained, got %d", ix.Ntotal())
	}
}

func TestBuild_GPURequestNeverFails(t *testing.T) {
	embeddings := clusteredVectors(4, 2, 3)
	ix, err := Build(embeddings, Options{Nlist: 16, UseGPU: true}, nil)
	if err != nil {
		t.Fatalf("expected best-effort CPU fallback, got error: %v", err)
	}
	if ix == nil {
		t.Fatal("expected a usable index")
	}
}

func TestBuild_EmptyEmbeddings(t *testing.T) {
	if _, err := Build(nil, Options{}, nil); err == nil {
		t.Error("expected error for empty embedding set")
	}
}
