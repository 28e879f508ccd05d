package port

import "ragcore/internal/domain"

// ArtifactStore persists the three build artifacts: the serialized vector
// index, the chunk bundle, and the manifest.
type ArtifactStore interface {
	PutIndex(blob []byte) error

	GetIndex() ([]byte, error)

	PutBundle(bundle domain.ChunkBundle) error

	GetBundle() (domain.ChunkBundle, error)

	PutManifest(m domain.Manifest) error

	GetManifest() (domain.Manifest, error)

	// HasArtifacts reports whether both the index blob and the chunk
	// bundle are present.
	HasArtifacts() bool

	Close() error
}
