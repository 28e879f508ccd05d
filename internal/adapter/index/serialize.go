package index

import (
	"encoding/json"
	"fmt"

	"ragcore/internal/port"
)

// persistedIndex is the on-disk envelope shared by both index kinds.
type persistedIndex struct {
	Kind      string      `json:"kind"`
	Dim       int         `json:"dim"`
	Vectors   [][]float32 `json:"vectors"`
	Nlist     int         `json:"nlist,omitempty"`
	Nprobe    int         `json:"nprobe,omitempty"`
	Centroids [][]float32 `json:"centroids,omitempty"`
	Lists     [][]int     `json:"lists,omitempty"`
}

func (ix *FlatIndex) Serialize() ([]byte, error) {
	return json.Marshal(persistedIndex{
		Kind:    KindFlat,
		Dim:     ix.dim,
		Vectors: ix.vectors,
	})
}

func (ix *IVFIndex) Serialize() ([]byte, error) {
	return json.Marshal(persistedIndex{
		Kind:      KindIVF,
		Dim:       ix.dim,
		Vectors:   ix.vectors,
		Nlist:     ix.nlist,
		Nprobe:    ix.nprobe,
		Centroids: ix.centroids,
		Lists:     ix.lists,
	})
}

// Deserialize reconstructs an index from a Serialize blob. Any structural
// problem is an error; a partially usable index is never returned.
func Deserialize(blob []byte) (port.VectorIndex, error) {
	var p persistedIndex
	if err := json.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("failed to decode index blob: %w", err)
	}
	if p.Dim <= 0 {
		return nil, fmt.Errorf("invalid index blob: dimension %d", p.Dim)
	}
	for i, v := range p.Vectors {
		if len(v) != p.Dim {
			return nil, fmt.Errorf("invalid index blob: vector %d has dimension %d, expected %d", i, len(v), p.Dim)
		}
	}

	switch p.Kind {
	case KindFlat:
		return &FlatIndex{dim: p.Dim, vectors: p.Vectors}, nil
	case KindIVF:
		if p.Nlist != len(p.Centroids) || p.Nlist != len(p.Lists) {
			return nil, fmt.Errorf("invalid index blob: nlist %d with %d centroids and %d lists", p.Nlist, len(p.Centroids), len(p.Lists))
		}
		total := 0
		for _, list := range p.Lists {
			for _, id := range list {
				if id < 0 || id >= len(p.Vectors) {
					return nil, fmt.Errorf("invalid index blob: list entry %d out of range", id)
				}
			}
			total += len(list)
		}
		if total != len(p.Vectors) {
			return nil, fmt.Errorf("invalid index blob: %d list entries for %d vectors", total, len(p.Vectors))
		}
		return &IVFIndex{
			dim:       p.Dim,
			nlist:     p.Nlist,
			nprobe:    p.Nprobe,
			centroids: p.Centroids,
			lists:     p.Lists,
			vectors:   p.Vectors,
		}, nil
	default:
		return nil, fmt.Errorf("unknown index kind %q", p.Kind)
	}
}
