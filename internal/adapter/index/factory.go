package index

import (
	"errors"
	"log/slog"

	"ragcore/internal/port"
)

const (
	KindFlat = "flat"
	KindIVF  = "ivf"

	// DefaultNlist is the corpus-size threshold below which an exact flat
	// index is built instead of a clustered one.
	DefaultNlist = 128
)

// Options tunes index construction. Nprobe is the latency/accuracy knob for
// the clustered variant. UseGPU requests best-effort acceleration; without a
// compiled-in backend construction continues on the CPU path.
type Options struct {
	Nlist  int
	Nprobe int
	UseGPU bool
}

// Build selects and constructs an index for the embedding set: exact flat
// below the clustering threshold, clustered IVF above it. A clustered build
// that fails to converge falls back to flat with a warning.
func Build(embeddings [][]float32, opts Options, logger *slog.Logger) (port.VectorIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nlist := opts.Nlist
	if nlist <= 0 {
		nlist = DefaultNlist
	}

	if opts.UseGPU {
		// No accelerator backend is compiled in; GPU offload is
		// best-effort and must never fail the build.
		logger.Warn("gpu_unavailable_fallback_cpu")
	}

	if len(embeddings) < nlist {
		return NewFlat(embeddings)
	}

	ivf, err := NewIVF(embeddings, nlist, opts.Nprobe)
	if err != nil {
		if errors.Is(err, ErrIndexTraining) {
			logger.Warn("ivf_training_failed_fallback_flat", "error", err)
			return NewFlat(embeddings)
		}
		return nil, err
	}
	return ivf, nil
}
