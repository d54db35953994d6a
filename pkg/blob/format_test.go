package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptedSize_RoundTrip(t *testing.T) {
	sizes := []uint64{0, 1, ChunkDataSize - 1, ChunkDataSize, ChunkDataSize + 1, 5*1024*1024 + 1, MaxFileSize}

	for _, raw := range sizes {
		enc := EncryptedSize(raw)
		got := RawSize(enc)
		assert.Equal(t, raw, got, "raw=%d enc=%d", raw, enc)
	}
}

func TestEncryptedSize_Scenario(t *testing.T) {
	raw := uint64(5*1024*1024 + 1)
	assert.Equal(t, uint64(3), ChunkCount(raw))
	assert.Equal(t, uint64(4+3*ChunkExtraDataSize)+raw, EncryptedSize(raw))
}

func TestEncryptedSize_EmptyFile(t *testing.T) {
	assert.Equal(t, uint64(0), ChunkCount(0))
	assert.Equal(t, uint64(HeaderSize), EncryptedSize(0))
}

func TestChunkOffset(t *testing.T) {
	assert.Equal(t, uint64(HeaderSize), ChunkOffset(0))
	assert.Equal(t, uint64(HeaderSize+ChunkFullSize), ChunkOffset(1))
}
