package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// BlobMeta is the sidecar written next to each blob so the store stays
// inspectable on disk.
type BlobMeta struct {
	Key       string    `json:"key"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// BlobStore is a content-addressable key-value store for image payloads
// (favicons keyed by source URL, thumbnails keyed by tab id). Blobs are
// written independently of the structured snapshot's debounce cadence so
// image churn never rewrites the main document.
type BlobStore struct {
	dir string
	mu  sync.RWMutex
}

// NewBlobStore creates a BlobStore and ensures the directory exists.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob store: mkdir %s: %w", dir, err)
	}
	return &BlobStore{dir: dir}, nil
}

// keyPath hashes the key into a filesystem-safe name; keys are URLs and ids.
func (s *BlobStore) keyPath(key string) (string, string) {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:16])
	return filepath.Join(s.dir, name+".img"), filepath.Join(s.dir, name+".json")
}

// Save writes the blob and its metadata sidecar.
func (s *BlobStore) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath, jsonPath := s.keyPath(key)
	if err := os.WriteFile(imgPath, data, 0o644); err != nil {
		return fmt.Errorf("blob store: write image: %w", err)
	}

	meta, err := json.MarshalIndent(BlobMeta{Key: key, SizeBytes: len(data), CreatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		_ = os.Remove(imgPath)
		return fmt.Errorf("blob store: marshal meta: %w", err)
	}
	if err := os.WriteFile(jsonPath, meta, 0o644); err != nil {
		_ = os.Remove(imgPath)
		return fmt.Errorf("blob store: write meta: %w", err)
	}
	return nil
}

// Read returns the blob for key.
func (s *BlobStore) Read(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	imgPath, _ := s.keyPath(key)
	data, err := os.ReadFile(imgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %q", key)
		}
		return nil, fmt.Errorf("blob store: read: %w", err)
	}
	return data, nil
}

// Has reports whether a blob exists for key.
func (s *BlobStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	imgPath, _ := s.keyPath(key)
	_, err := os.Stat(imgPath)
	return err == nil
}

// Delete removes the blob and sidecar for key.
func (s *BlobStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	imgPath, jsonPath := s.keyPath(key)
	_ = os.Remove(imgPath)
	_ = os.Remove(jsonPath)
}
