// Package imagery stores downloaded scene pixels on disk. Each zone owns at
// most one blob, so paths are deterministic and an overwrite on refresh
// replaces the previous pixels in place.
package imagery

import (
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore writes zone image blobs under a single root directory.
type BlobStore struct {
	dir string
}

// NewBlobStore creates the storage root if needed.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// Dir returns the storage root.
func (b *BlobStore) Dir() string {
	return b.dir
}

// PathFor returns the blob path for a zone.
func (b *BlobStore) PathFor(zoneID string) string {
	return filepath.Join(b.dir, zoneID+".png")
}

// Save writes the blob for a zone, replacing any previous one, and returns
// the path and byte size written.
func (b *BlobStore) Save(zoneID string, data []byte) (path string, size int64, err error) {
	path = b.PathFor(zoneID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write image blob: %w", err)
	}
	return path, int64(len(data)), nil
}

// Delete removes a zone's blob. A missing blob is not an error; the record
// may have been retired before the pixels were ever written.
func (b *BlobStore) Delete(zoneID string) error {
	err := os.Remove(b.PathFor(zoneID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image blob: %w", err)
	}
	return nil
}

// Exists reports whether a zone currently has a blob on disk.
func (b *BlobStore) Exists(zoneID string) bool {
	_, err := os.Stat(b.PathFor(zoneID))
	return err == nil
}
