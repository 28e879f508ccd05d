package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"ragcore/internal/domain"
)

var (
	bucketArtifacts = []byte("artifacts")

	keyIndex    = []byte("index")
	keyBundle   = []byte("chunks")
	keyManifest = []byte("manifest")
)

// BoltArtifactStore persists the serialized index, the chunk bundle, and the
// manifest in a single bbolt file.
type BoltArtifactStore struct {
	db *bbolt.DB
}

func NewBoltArtifactStore(path string) (*BoltArtifactStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketArtifacts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create artifacts bucket: %w", err)
	}

	return &BoltArtifactStore{db: db}, nil
}

func (s *BoltArtifactStore) PutIndex(blob []byte) error {
	return s.put(keyIndex, blob)
}

func (s *BoltArtifactStore) GetIndex() ([]byte, error) {
	return s.get(keyIndex)
}

func (s *BoltArtifactStore) PutBundle(bundle domain.ChunkBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk bundle: %w", err)
	}
	return s.put(keyBundle, data)
}

func (s *BoltArtifactStore) GetBundle() (domain.ChunkBundle, error) {
	var bundle domain.ChunkBundle
	data, err := s.get(keyBundle)
	if err != nil {
		return bundle, err
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return domain.ChunkBundle{}, fmt.Errorf("failed to decode chunk bundle: %w", err)
	}
	if len(bundle.Metadata) > 0 && len(bundle.Metadata) != len(bundle.Chunks) {
		return domain.ChunkBundle{}, fmt.Errorf("chunk bundle has %d metadata records for %d chunks", len(bundle.Metadata), len(bundle.Chunks))
	}
	return bundle, nil
}

func (s *BoltArtifactStore) PutManifest(m domain.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return s.put(keyManifest, data)
}

func (s *BoltArtifactStore) GetManifest() (domain.Manifest, error) {
	var m domain.Manifest
	data, err := s.get(keyManifest)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}

// HasArtifacts reports whether both the index blob and the chunk bundle are
// present, which is the precondition for the fast-path reload.
func (s *BoltArtifactStore) HasArtifacts() bool {
	found := false
	s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		found = b.Get(keyIndex) != nil && b.Get(keyBundle) != nil
		return nil
	})
	return found
}

func (s *BoltArtifactStore) Close() error {
	return s.db.Close()
}

func (s *BoltArtifactStore) put(key, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketArtifacts).Put(key, value)
	})
}

func (s *BoltArtifactStore) get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketArtifacts).Get(key)
		if data == nil {
			return fmt.Errorf("artifact not found: %s", key)
		}
		out = append([]byte(nil), data...)
		return nil
	})
	return out, err
}
