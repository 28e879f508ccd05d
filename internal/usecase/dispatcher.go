package usecase

import "context"

// Dispatcher runs pipeline answers concurrently behind a bounded worker
// semaphore. It wraps a Pipeline by composition; the pipeline itself stays
// synchronous.
type Dispatcher struct {
	pipeline *Pipeline
	sem      chan struct{}
}

func NewDispatcher(pipeline *Pipeline, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		pipeline: pipeline,
		sem:      make(chan struct{}, workers),
	}
}

type answerResult struct {
	answer string
	err    error
}

// Answer runs pipeline.Answer on a worker slot, honoring ctx cancellation
// both while waiting for a slot and while the answer is being produced.
func (d *Dispatcher) Answer(ctx context.Context, question string, filters map[string]any) (string, error) {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	done := make(chan answerResult, 1)
	go func() {
		defer func() { <-d.sem }()
		answer, err := d.pipeline.Answer(question, filters)
		done <- answerResult{answer: answer, err: err}
	}()

	select {
	case res := <-done:
		return res.answer, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
