package upload

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pineappleswan/treasury/pkg/blob"
	"github.com/pineappleswan/treasury/pkg/catalog"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *catalog.Store, uint) {
	t.Helper()
	dir := t.TempDir()

	store, err := catalog.New(catalog.Config{Path: filepath.Join(dir, "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	code, err := store.ReserveAccount(1024*1024*1024, catalog.ReservationSalts{
		PasswordPublicSalt: []byte("a"), PasswordPrivateSalt: []byte("b"), MasterKeySalt: []byte("c"),
	})
	require.NoError(t, err)
	user, err := store.Claim(code, "owner", "hash", catalog.Keypairs{})
	require.NoError(t, err)

	coord, err := NewCoordinator(store, filepath.Join(dir, "temp"), filepath.Join(dir, "storage"))
	require.NoError(t, err)

	return coord, store, user.ID
}

func makeChunk(chunkID uint32, raw []byte) []byte {
	out := make([]byte, 0, blob.ChunkExtraDataSize+len(raw))
	out = append(out, blob.ChunkMagic[:]...)
	out = append(out, byte(chunkID>>24), byte(chunkID>>16), byte(chunkID>>8), byte(chunkID))
	out = append(out, make([]byte, 24)...) // nonce
	out = append(out, raw...)
	out = append(out, make([]byte, 16)...) // tag
	return out
}

// TestUploadLifecycle_SingleChunk verifies P1/P7 end to end: start, one
// chunk, finalise, and the resulting catalog row's size.
func TestUploadLifecycle_SingleChunk(t *testing.T) {
	coord, store, ownerID := newTestCoordinator(t)

	raw := []byte("hello world")
	encSize := blob.EncryptedSize(uint64(len(raw)))

	handle, err := coord.Start(ownerID, encSize)
	require.NoError(t, err)

	chunk := makeChunk(0, raw)
	require.Equal(t, encSize-blob.HeaderSize, uint64(len(chunk)))

	require.NoError(t, coord.Chunk(ownerID, handle, 0, chunk))

	sig := make([]byte, blob.SignatureSize)
	entry, err := coord.Finalise(ownerID, handle, FinaliseRequest{
		ParentHandle:      blob.RootHandle,
		EncryptedMetadata: []byte("meta"),
		EncryptedCryptKey: make([]byte, blob.CryptKeySize),
		SignatureBase64:   base64.StdEncoding.EncodeToString(sig),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(len(raw)), entry.SizeBytes)

	owner, err := store.FileOwner(handle)
	require.NoError(t, err)
	require.Equal(t, ownerID, owner)

	// The temp file must be gone, the final blob present.
	_, err = os.Stat(filepath.Join(coord.tempDir, handle+".tef"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(coord.storageDir, handle+".tef"))
	require.NoError(t, err)
}

// TestUploadLifecycle_EmptyFile verifies a declared encrypted_size of 0 (an
// empty file) finalises without ever receiving a chunk.
func TestUploadLifecycle_EmptyFile(t *testing.T) {
	coord, store, ownerID := newTestCoordinator(t)

	handle, err := coord.Start(ownerID, 0)
	require.NoError(t, err)

	sig := make([]byte, blob.SignatureSize)
	entry, err := coord.Finalise(ownerID, handle, FinaliseRequest{
		ParentHandle:      blob.RootHandle,
		EncryptedMetadata: []byte("meta"),
		EncryptedCryptKey: make([]byte, blob.CryptKeySize),
		SignatureBase64:   base64.StdEncoding.EncodeToString(sig),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), entry.SizeBytes)

	owner, err := store.FileOwner(handle)
	require.NoError(t, err)
	require.Equal(t, ownerID, owner)

	_, err = os.Stat(filepath.Join(coord.storageDir, handle+".tef"))
	require.NoError(t, err)
}

// TestUploadChunk_OutOfOrder verifies out-of-order arrival commits in order.
func TestUploadChunk_OutOfOrder(t *testing.T) {
	coord, _, ownerID := newTestCoordinator(t)

	raw0 := make([]byte, blob.ChunkDataSize)
	raw1 := []byte("tail bytes")
	total := uint64(len(raw0) + len(raw1))
	encSize := blob.EncryptedSize(total)

	handle, err := coord.Start(ownerID, encSize)
	require.NoError(t, err)

	chunk1 := makeChunk(1, raw1)
	chunk0 := makeChunk(0, raw0)

	require.NoError(t, coord.Chunk(ownerID, handle, 1, chunk1))
	require.NoError(t, coord.Chunk(ownerID, handle, 0, chunk0))

	sig := make([]byte, blob.SignatureSize)
	entry, err := coord.Finalise(ownerID, handle, FinaliseRequest{
		ParentHandle:      blob.RootHandle,
		EncryptedCryptKey: make([]byte, blob.CryptKeySize),
		SignatureBase64:   base64.StdEncoding.EncodeToString(sig),
	})
	require.NoError(t, err)
	require.Equal(t, total, entry.SizeBytes)
}

// TestUploadChunk_BadMagic verifies P7: any chunk with a wrong magic is
// rejected and does not mutate the session.
func TestUploadChunk_BadMagic(t *testing.T) {
	coord, _, ownerID := newTestCoordinator(t)

	raw := []byte("data")
	handle, err := coord.Start(ownerID, blob.EncryptedSize(uint64(len(raw))))
	require.NoError(t, err)

	bad := makeChunk(0, raw)
	bad[0] = 0x00

	err = coord.Chunk(ownerID, handle, 0, bad)
	require.ErrorIs(t, err, ErrInvalidChunkShape)

	require.Equal(t, uint64(blob.HeaderSize), coord.sessions[handle].WrittenBytes())
}

func TestUploadChunk_TooManyPending(t *testing.T) {
	coord, _, ownerID := newTestCoordinator(t)

	raw := make([]byte, blob.ChunkDataSize*6)
	handle, err := coord.Start(ownerID, blob.EncryptedSize(uint64(len(raw))))
	require.NoError(t, err)

	// Never submit chunk 0, so 1..4 pile up in the reorder buffer.
	for i := uint32(1); i <= blob.MaxConcurrentChunks; i++ {
		chunk := makeChunk(i, raw[:blob.ChunkDataSize])
		require.NoError(t, coord.Chunk(ownerID, handle, uint64(i), chunk))
	}

	chunk5 := makeChunk(5, raw[:blob.ChunkDataSize])
	err = coord.Chunk(ownerID, handle, 5, chunk5)
	require.ErrorIs(t, err, ErrTooManyPending)
}

func TestStart_RejectsSizeAboveMax(t *testing.T) {
	coord, _, ownerID := newTestCoordinator(t)

	_, err := coord.Start(ownerID, blob.MaxFileSize+1)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestStart_RejectsOverQuota(t *testing.T) {
	coord, _, ownerID := newTestCoordinator(t)

	// The test account's quota is 1GiB; declaring a 2GiB upload must fail
	// the quota gate even though it is well under MAX_FILE_SIZE.
	_, err := coord.Start(ownerID, blob.EncryptedSize(2*1024*1024*1024))
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestCancel_Idempotent(t *testing.T) {
	coord, _, ownerID := newTestCoordinator(t)

	handle, err := coord.Start(ownerID, blob.EncryptedSize(100))
	require.NoError(t, err)

	require.NoError(t, coord.Cancel(ownerID, handle))
	err = coord.Cancel(ownerID, handle)
	require.ErrorIs(t, err, ErrSessionNotFound)
}
