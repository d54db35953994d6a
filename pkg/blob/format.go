// Package blob defines the byte-exact on-disk layout of a finalised encrypted
// file (the ".tef" format) and the size arithmetic that relates a file's
// plaintext size to its encrypted, on-disk size.
//
// The server never decrypts or interprets the ciphertext carried inside a
// chunk; it only validates magic bytes, chunk boundaries, and total length.
package blob

import "math"

// Structural constants, normative per the wire format.
const (
	// FileHandleLength is the length of a file or folder handle.
	FileHandleLength = 16

	// ClaimCodeLength is the length of a one-time account-claim code.
	ClaimCodeLength = 20

	// SaltByteLength is the length of each stored salt.
	SaltByteLength = 32

	// ChunkDataSize is the raw (plaintext) payload carried by a full chunk.
	ChunkDataSize = 2 * 1024 * 1024

	// ChunkExtraDataSize is chunk_id(4) + nonce(24) + tag(16) + magic(4).
	ChunkExtraDataSize = 4 + 4 + 24 + 16

	// ChunkFullSize is the on-disk size of a full (non-final) chunk.
	ChunkFullSize = ChunkDataSize + ChunkExtraDataSize

	// HeaderSize is the length of the file-level magic header.
	HeaderSize = 4

	// MaxFileSize is the largest encrypted file size accepted (1 TiB).
	MaxFileSize = 1024 * 1024 * 1024 * 1024

	// MaxMetadataSize is the largest encrypted metadata blob accepted.
	MaxMetadataSize = 1024

	// CryptKeySize is the size of an encrypted per-file content key
	// (nonce(24) + key(32) + tag(16)).
	CryptKeySize = 72

	// SignatureSize is the raw (post-base64-decode) size of an Ed25519 signature.
	SignatureSize = 64

	// MaxConcurrentChunks bounds the in-flight reorder buffer per upload.
	MaxConcurrentChunks = 4
)

// FileMagic is the 4-byte magic that opens every finalised blob.
var FileMagic = [4]byte{0x2E, 0x54, 0x45, 0x46} // ".TEF"

// ChunkMagic is the 4-byte magic that opens every chunk.
var ChunkMagic = [4]byte{0x43, 0x48, 0x4E, 0x4B} // "CHNK"

// ChunkCount returns ceil(raw / ChunkDataSize), the number of chunks a file
// of the given plaintext size is split into. A raw size of 0 yields 0
// chunks: a genuinely empty file has nothing beyond the file header (see
// Coordinator.Start's handling of a declared size of exactly 0).
func ChunkCount(raw uint64) uint64 {
	if raw == 0 {
		return 0
	}
	return uint64(math.Ceil(float64(raw) / float64(ChunkDataSize)))
}

// EncryptedSize returns the total on-disk size of a file whose plaintext
// size is raw bytes.
func EncryptedSize(raw uint64) uint64 {
	return HeaderSize + ChunkCount(raw)*ChunkExtraDataSize + raw
}

// ChunkCountFromEncrypted returns the chunk count implied by an encrypted
// (on-disk) size.
func ChunkCountFromEncrypted(enc uint64) uint64 {
	if enc <= HeaderSize {
		return 0
	}
	return uint64(math.Ceil(float64(enc-HeaderSize) / float64(ChunkFullSize)))
}

// RawSize is the inverse of EncryptedSize: given an on-disk size, recover the
// plaintext size it encodes.
func RawSize(enc uint64) uint64 {
	count := ChunkCountFromEncrypted(enc)
	overhead := HeaderSize + count*ChunkExtraDataSize
	if enc < overhead {
		return 0
	}
	return enc - overhead
}

// ChunkOffset returns the on-disk byte offset at which chunk chunkID begins,
// assuming all prior chunks are full-sized. Used by the download streamer,
// which always requests full-sized reads (the final chunk is shorter and the
// caller simply receives fewer bytes than requested).
func ChunkOffset(chunkID uint64) uint64 {
	return HeaderSize + chunkID*ChunkFullSize
}
