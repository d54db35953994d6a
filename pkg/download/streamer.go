// Package download implements the download streamer: ownership-checked,
// chunk-addressed reads from a finalised .tef blob.
package download

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/pineappleswan/treasury/pkg/blob"
	"github.com/pineappleswan/treasury/pkg/catalog"
)

// Streamer serves individual chunks of finalised blobs, after verifying
// the caller owns the handle via the catalog.
type Streamer struct {
	catalog    *catalog.Store
	storageDir string
}

// NewStreamer constructs a Streamer reading finalised blobs from storageDir.
func NewStreamer(store *catalog.Store, storageDir string) *Streamer {
	return &Streamer{catalog: store, storageDir: storageDir}
}

// Chunk returns the raw on-disk bytes of chunk chunkID from the blob
// identified by handle, after verifying ownerID owns it. The returned
// slice is the full encrypted chunk (magic ‖ nonce ‖ ciphertext ‖ tag);
// the server never interprets its contents.
func (s *Streamer) Chunk(ownerID uint, handle string, chunkID uint64) ([]byte, error) {
	owner, err := s.catalog.FileOwner(handle)
	if errors.Is(err, catalog.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if owner != ownerID {
		return nil, ErrNotOwner
	}

	path := filepath.Join(s.storageDir, handle+".tef")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer file.Close()

	offset := int64(blob.ChunkOffset(chunkID))
	buf := make([]byte, blob.ChunkFullSize)

	n, err := file.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
