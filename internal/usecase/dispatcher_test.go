package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcher_ConcurrentAnswers(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)
	path := writeDoc(t, dir, "doc.txt", franceDoc)
	if err := f.pipeline.LoadFromFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := NewDispatcher(f.pipeline, 4)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			answer, err := d.Answer(context.Background(), "capital of France", nil)
			if err != nil {
				t.Errorf("answer failed: %v", err)
				return
			}
			if answer != "the answer" {
				t.Errorf("unexpected answer %q", answer)
			}
		}()
	}
	wg.Wait()

	// Every answer came from the generator or the context cache.
	if n := f.generator.callCount(); n < 1 || n > 16 {
		t.Errorf("expected between 1 and 16 generation calls, got %d", n)
	}
}

func TestDispatcher_ContextCancellation(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)

	d := NewDispatcher(f.pipeline, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Answer(ctx, "anything", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	dir := t.TempDir()
	f := newPipelineFixture(t, dir)

	d := NewDispatcher(f.pipeline, 1)

	// Occupy the only worker slot so the next call waits on the semaphore.
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Answer(ctx, "anything", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}
