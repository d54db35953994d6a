package auth

import (
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pineappleswan/treasury/pkg/catalog"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := catalog.New(catalog.Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sessions := NewSessionStore(time.Hour, time.Hour)
	t.Cleanup(sessions.Stop)

	return NewService(store, sessions, []byte("unit-test-server-secret"))
}

func hexHash(b byte) string {
	buf := make([]byte, argon2HashLength)
	for i := range buf {
		buf[i] = b
	}
	return hex.EncodeToString(buf)
}

// TestLogin_ExistenceHiding verifies P5: an unknown username's salt request
// returns the deterministic fake salt, stable across repeated calls.
func TestLogin_ExistenceHiding(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.Login("nosuchuser", "")
	require.NoError(t, err)
	second, err := svc.Login("nosuchuser", "")
	require.NoError(t, err)

	expected := FakePublicSalt("nosuchuser", []byte("unit-test-server-secret"))
	require.Equal(t, expected[:], first.PublicSalt)
	require.Equal(t, first.PublicSalt, second.PublicSalt)
}

func TestLogin_UnknownUserWithHash_ReturnsIncorrectCredentials(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Login("nosuchuser", hexHash(0xAB))
	require.ErrorIs(t, err, ErrIncorrectCredentials)
}

func TestClaimAndLogin_RoundTrip(t *testing.T) {
	svc := newTestService(t)

	code, err := svc.catalog.ReserveAccount(1024*1024*1024, catalog.ReservationSalts{
		PasswordPublicSalt:  []byte("pub"),
		PasswordPrivateSalt: []byte("priv"),
		MasterKeySalt:       []byte("master"),
	})
	require.NoError(t, err)

	probe, err := svc.ClaimProbe(code)
	require.NoError(t, err)
	require.Equal(t, uint64(1024*1024*1024), probe.StorageQuotaBytes)

	clientHash := hexHash(0x11)
	user, err := svc.ClaimCommit(code, "newuser", clientHash, ClaimKeypairs{})
	require.NoError(t, err)
	require.Equal(t, "newuser", user.Username)

	result, err := svc.Login("newuser", clientHash)
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionToken)

	session, err := svc.RequireSession(result.SessionToken)
	require.NoError(t, err)
	require.Equal(t, "newuser", session.Username)
}

func TestClaimCommit_CodeReuse(t *testing.T) {
	svc := newTestService(t)
	code, err := svc.catalog.ReserveAccount(1024, catalog.ReservationSalts{
		PasswordPublicSalt: []byte("a"), PasswordPrivateSalt: []byte("b"), MasterKeySalt: []byte("c"),
	})
	require.NoError(t, err)

	_, err = svc.ClaimCommit(code, "first", hexHash(1), ClaimKeypairs{})
	require.NoError(t, err)

	_, err = svc.ClaimCommit(code, "second", hexHash(2), ClaimKeypairs{})
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newTestService(t)
	code, err := svc.catalog.ReserveAccount(1024, catalog.ReservationSalts{
		PasswordPublicSalt: []byte("a"), PasswordPrivateSalt: []byte("b"), MasterKeySalt: []byte("c"),
	})
	require.NoError(t, err)
	_, err = svc.ClaimCommit(code, "target", hexHash(1), ClaimKeypairs{})
	require.NoError(t, err)

	_, err = svc.Login("target", hexHash(2))
	require.ErrorIs(t, err, ErrIncorrectCredentials)
}
