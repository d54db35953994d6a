package catalog

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pineappleswan/treasury/pkg/blob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	store, err := New(Config{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSalts() ReservationSalts {
	return ReservationSalts{
		PasswordPublicSalt:  []byte("public-salt"),
		PasswordPrivateSalt: []byte("private-salt"),
		MasterKeySalt:       []byte("master-salt"),
	}
}

func TestReserveAndClaim(t *testing.T) {
	store := newTestStore(t)

	code, err := store.ReserveAccount(10*1024*1024*1024, testSalts())
	require.NoError(t, err)
	require.Len(t, code, blob.ClaimCodeLength)

	user, err := store.Claim(code, "alice", "argon2id$hash", Keypairs{})
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, uint64(10*1024*1024*1024), user.StorageQuotaBytes)

	fetched, err := store.LookupUser("alice")
	require.NoError(t, err)
	require.Equal(t, user.ID, fetched.ID)
}

// TestClaim_ConcurrentSameCode verifies P3: exactly one of many concurrent
// claims against the same code succeeds.
func TestClaim_ConcurrentSameCode(t *testing.T) {
	store := newTestStore(t)
	code, err := store.ReserveAccount(1024, testSalts())
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	successes := make(chan string, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			username := "racer"
			if _, err := store.Claim(code, username, "hash", Keypairs{}); err == nil {
				successes <- username
			}
		}(i)
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	require.Equal(t, 1, count)
}

func TestClaim_UnknownCode(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Claim("NOSUCHCODE00000000XX", "bob", "hash", Keypairs{})
	require.ErrorIs(t, err, ErrReservationNotFound)
}

func TestClaim_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)

	code1, err := store.ReserveAccount(1024, testSalts())
	require.NoError(t, err)
	_, err = store.Claim(code1, "carol", "hash", Keypairs{})
	require.NoError(t, err)

	code2, err := store.ReserveAccount(1024, testSalts())
	require.NoError(t, err)
	_, err = store.Claim(code2, "carol", "hash", Keypairs{})
	require.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestInsertFile_RootAndNested(t *testing.T) {
	store := newTestStore(t)
	code, err := store.ReserveAccount(1024*1024*1024, testSalts())
	require.NoError(t, err)
	user, err := store.Claim(code, "dave", "hash", Keypairs{})
	require.NoError(t, err)

	folder := &FileEntry{
		Handle:       "folderhandle0001",
		ParentHandle: blob.RootHandle,
		SizeBytes:    0,
	}
	require.NoError(t, store.InsertFile(user.ID, folder))

	file := &FileEntry{
		Handle:                "filehandle00001",
		ParentHandle:          folder.Handle,
		SizeBytes:             2048,
		EncryptedFileCryptKey: []byte("cryptkey"),
	}
	require.NoError(t, store.InsertFile(user.ID, file))

	children, err := store.ListChildren(user.ID, folder.Handle)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, file.Handle, children[0].Handle)
	require.True(t, folder.IsFolder())
	require.False(t, file.IsFolder())
}

func TestInsertFile_InvalidParent(t *testing.T) {
	store := newTestStore(t)
	code, err := store.ReserveAccount(1024, testSalts())
	require.NoError(t, err)
	user, err := store.Claim(code, "erin", "hash", Keypairs{})
	require.NoError(t, err)

	file := &FileEntry{
		Handle:       "filehandle00002",
		ParentHandle: "doesnotexist0001",
		SizeBytes:    10,
	}
	err = store.InsertFile(user.ID, file)
	require.ErrorIs(t, err, ErrInvalidParent)
}

// TestBytesUsed_Aggregation verifies P6: bytes_used tracks the sum of
// inserted file sizes for the owner only.
func TestBytesUsed_Aggregation(t *testing.T) {
	store := newTestStore(t)

	code1, _ := store.ReserveAccount(1024*1024*1024, testSalts())
	userA, err := store.Claim(code1, "frank", "hash", Keypairs{})
	require.NoError(t, err)

	code2, _ := store.ReserveAccount(1024*1024*1024, testSalts())
	userB, err := store.Claim(code2, "grace", "hash", Keypairs{})
	require.NoError(t, err)

	require.NoError(t, store.InsertFile(userA.ID, &FileEntry{
		Handle: "filehandle00003", ParentHandle: blob.RootHandle,
		SizeBytes: 1000, EncryptedFileCryptKey: []byte("k"),
	}))
	require.NoError(t, store.InsertFile(userA.ID, &FileEntry{
		Handle: "filehandle00004", ParentHandle: blob.RootHandle,
		SizeBytes: 2000, EncryptedFileCryptKey: []byte("k"),
	}))
	require.NoError(t, store.InsertFile(userB.ID, &FileEntry{
		Handle: "filehandle00005", ParentHandle: blob.RootHandle,
		SizeBytes: 500, EncryptedFileCryptKey: []byte("k"),
	}))

	usedA, err := store.BytesUsed(userA.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(3000), usedA)

	usedB, err := store.BytesUsed(userB.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(500), usedB)
}

func TestUpdateMetadata_NotOwner(t *testing.T) {
	store := newTestStore(t)

	code1, _ := store.ReserveAccount(1024, testSalts())
	userA, err := store.Claim(code1, "heidi", "hash", Keypairs{})
	require.NoError(t, err)

	code2, _ := store.ReserveAccount(1024, testSalts())
	userB, err := store.Claim(code2, "ivan", "hash", Keypairs{})
	require.NoError(t, err)

	require.NoError(t, store.InsertFile(userA.ID, &FileEntry{
		Handle: "filehandle00006", ParentHandle: blob.RootHandle,
		SizeBytes: 10, EncryptedFileCryptKey: []byte("k"),
	}))

	err = store.UpdateMetadata(userB.ID, "filehandle00006", []byte("new"))
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestFileOwner_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.FileOwner("nosuchhandle0001")
	require.ErrorIs(t, err, ErrFileNotFound)
}
