package index

import (
	"errors"
	"fmt"
	"math"

	"ragcore/internal/domain"
)

// ErrIndexTraining reports that clustered index construction could not
// converge, typically because the embedding set is degenerate (nearly all
// duplicates). Callers fall back to a flat index.
var ErrIndexTraining = errors.New("index training did not converge")

const trainIterations = 20

// IVFIndex is the approximate variant: vectors are partitioned into nlist
// clusters by spherical k-means, and a query scans only the nprobe clusters
// whose centroids score highest against it.
type IVFIndex struct {
	dim       int
	nlist     int
	nprobe    int
	centroids [][]float32
	lists     [][]int
	vectors   [][]float32
}

// NewIVF trains cluster centers on the full embedding set and assigns every
// vector to its nearest cluster. Returns ErrIndexTraining when the set has
// fewer distinct vectors than nlist.
func NewIVF(embeddings [][]float32, nlist, nprobe int) (*IVFIndex, error) {
	dim, err := checkDims(embeddings)
	if err != nil {
		return nil, err
	}
	if nlist < 2 {
		return nil, fmt.Errorf("nlist must be at least 2, got %d", nlist)
	}
	if nprobe <= 0 {
		nprobe = defaultNProbe(nlist)
	}

	centroids, err := trainCentroids(embeddings, dim, nlist)
	if err != nil {
		return nil, err
	}

	lists := make([][]int, nlist)
	for i, v := range embeddings {
		c := nearestCentroid(v, centroids)
		lists[c] = append(lists[c], i)
	}

	return &IVFIndex{
		dim:       dim,
		nlist:     nlist,
		nprobe:    nprobe,
		centroids: centroids,
		lists:     lists,
		vectors:   embeddings,
	}, nil
}

// SetNProbe adjusts the number of clusters scanned per query. Higher values
// trade latency for recall. Values are clamped to [1, nlist].
func (ix *IVFIndex) SetNProbe(n int) {
	if n < 1 {
		n = 1
	}
	if n > ix.nlist {
		n = ix.nlist
	}
	ix.nprobe = n
}

func (ix *IVFIndex) NProbe() int { return ix.nprobe }

func (ix *IVFIndex) Search(query []float32, k int) ([]domain.Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", ix.dim, len(query))
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}

	// Rank clusters by centroid similarity and scan the top nprobe.
	ranked := make([]domain.Hit, len(ix.centroids))
	for i, c := range ix.centroids {
		ranked[i] = domain.Hit{ID: i, Score: dot(query, c)}
	}
	rankHits(ranked)

	probes := ix.nprobe
	if probes > len(ranked) {
		probes = len(ranked)
	}

	var hits []domain.Hit
	for _, cluster := range ranked[:probes] {
		for _, id := range ix.lists[cluster.ID] {
			hits = append(hits, domain.Hit{ID: id, Score: dot(query, ix.vectors[id])})
		}
	}
	rankHits(hits)

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (ix *IVFIndex) Ntotal() int { return len(ix.vectors) }

func (ix *IVFIndex) Dim() int { return ix.dim }

func (ix *IVFIndex) Kind() string { return KindIVF }

func defaultNProbe(nlist int) int {
	if nlist < 8 {
		return nlist
	}
	return 8
}

// trainCentroids runs spherical k-means: centroids are re-normalized after
// every mean update so assignment by inner product stays a cosine argmax.
func trainCentroids(embeddings [][]float32, dim, nlist int) ([][]float32, error) {
	distinct := distinctVectors(embeddings)
	if len(distinct) < nlist {
		return nil, fmt.Errorf("%w: %d distinct vectors for %d clusters", ErrIndexTraining, len(distinct), nlist)
	}

	// Seed with distinct vectors spread evenly across the input order.
	centroids := make([][]float32, nlist)
	step := len(distinct) / nlist
	for i := range centroids {
		seed := distinct[i*step]
		centroids[i] = append([]float32(nil), seed...)
	}

	assign := make([]int, len(embeddings))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < trainIterations; iter++ {
		changed := false
		for i, v := range embeddings {
			c := nearestCentroid(v, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range embeddings {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}

		for c := range centroids {
			if counts[c] == 0 {
				// Empty cluster keeps its previous center.
				continue
			}
			var norm float64
			for d := range sums[c] {
				sums[c][d] /= float64(counts[c])
				norm += sums[c][d] * sums[c][d]
			}
			norm = math.Sqrt(norm)
			if norm == 0 {
				continue
			}
			for d := range sums[c] {
				centroids[c][d] = float32(sums[c][d] / norm)
			}
		}
	}

	return centroids, nil
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestScore := float32(math.Inf(-1))
	for c, centroid := range centroids {
		if s := dot(v, centroid); s > bestScore {
			best = c
			bestScore = s
		}
	}
	return best
}

// distinctVectors returns one representative per unique vector, preserving
// first-seen order.
func distinctVectors(embeddings [][]float32) [][]float32 {
	seen := make(map[string]struct{}, len(embeddings))
	var distinct [][]float32
	for _, v := range embeddings {
		key := vectorKey(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		distinct = append(distinct, v)
	}
	return distinct
}

func vectorKey(v []float32) string {
	buf := make([]byte, 0, len(v)*4)
	for _, x := range v {
		bits := math.Float32bits(x)
		buf = append(buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return string(buf)
}
