package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pineappleswan/treasury/pkg/auth"
	"github.com/pineappleswan/treasury/pkg/catalog"
	"github.com/pineappleswan/treasury/pkg/download"
	"github.com/pineappleswan/treasury/pkg/upload"
)

func newTestGateway(t *testing.T) (*httptest.Server, *catalog.Store) {
	t.Helper()
	dir := t.TempDir()

	store, err := catalog.New(catalog.Config{Path: filepath.Join(dir, "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sessions := auth.NewSessionStore(time.Hour, time.Hour)
	t.Cleanup(sessions.Stop)
	authService := auth.NewService(store, sessions, []byte("test-server-secret"))
	rateLimiter := auth.NewClientRateLimiter()

	coordinator, err := upload.NewCoordinator(store, filepath.Join(dir, "uploads"), filepath.Join(dir, "storage"))
	require.NoError(t, err)
	streamer := download.NewStreamer(store, filepath.Join(dir, "storage"))

	router := NewRouter(RouterDeps{
		Catalog:          store,
		AuthService:      authService,
		RateLimiter:      rateLimiter,
		Coordinator:      coordinator,
		Streamer:         streamer,
		SecureCookies:    false,
		MaxJSONBodyBytes: 5 * 1024 * 1024,
		MaxRawBodyBytes:  50 * 1024 * 1024,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, store
}

func hexPasswordHash(fill byte) string {
	return strings.Repeat(string([]byte{"0123456789abcdef"[fill%16]}), 64)
}

func dummyKeypairs() map[string]string {
	encoded := base64.StdEncoding.EncodeToString([]byte("dummy-key-material"))
	return map[string]string{
		"ed25519PrivateKeyEncryptedB64": encoded,
		"ed25519PublicKeyB64":           encoded,
		"x25519PrivateKeyEncryptedB64":  encoded,
		"x25519PublicKeyB64":            encoded,
	}
}

func postJSON(t *testing.T, client *http.Client, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeJSONBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// TestHealth verifies the ambient liveness route.
func TestHealth(t *testing.T) {
	server, _ := newTestGateway(t)
	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestLoginAndGetUsername exercises claim -> login -> an authenticated
// route, across the real HTTP surface with a cookie jar standing in for a
// browser.
func TestLoginAndGetUsername(t *testing.T) {
	server, store := newTestGateway(t)

	code, err := store.ReserveAccount(1024*1024*1024, catalog.ReservationSalts{
		PasswordPublicSalt:  []byte("pub"),
		PasswordPrivateSalt: []byte("priv"),
		MasterKeySalt:       []byte("mks"),
	})
	require.NoError(t, err)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	passwordHash := hexPasswordHash(7)

	claimResp := postJSON(t, client, server.URL+"/api/claimaccount", map[string]interface{}{
		"code":     code,
		"username": "gatewaytester",
		"password": passwordHash,
		"keypairs": dummyKeypairs(),
	})
	require.Equal(t, http.StatusOK, claimResp.StatusCode)
	claimResp.Body.Close()

	loginResp := postJSON(t, client, server.URL+"/api/login", map[string]string{
		"username": "gatewaytester",
		"password": passwordHash,
	})
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	loginResp.Body.Close()

	usernameResp, err := client.Get(server.URL + "/api/getusername")
	require.NoError(t, err)
	var usernameBody map[string]string
	decodeJSONBody(t, usernameResp, &usernameBody)
	require.Equal(t, "gatewaytester", usernameBody["value"])

	// A second login attempt while already authenticated is refused rather
	// than processed.
	secondLoginResp := postJSON(t, client, server.URL+"/api/login", map[string]string{
		"username": "gatewaytester",
		"password": passwordHash,
	})
	defer secondLoginResp.Body.Close()
	require.Equal(t, http.StatusBadRequest, secondLoginResp.StatusCode)
}

// TestGetUsername_RequiresSession verifies the 401 path for a missing
// session cookie.
func TestGetUsername_RequiresSession(t *testing.T) {
	server, _ := newTestGateway(t)

	resp, err := http.Get(server.URL + "/api/getusername")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// TestClaimAccount_UnknownCodeIsBadRequest verifies an invalid claim code is
// reported as 400, not an existence oracle.
func TestClaimAccount_UnknownCodeIsBadRequest(t *testing.T) {
	server, _ := newTestGateway(t)

	resp := postJSON(t, http.DefaultClient, server.URL+"/api/claimaccount", map[string]string{
		"code": "nosuchcode0000000000",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestDownloadChunk_NotOwnerIsBadRequest verifies P4 over HTTP: referencing
// another account's handle is reported as 400, same as a malformed request,
// never a 404 that would confirm the handle exists.
func TestDownloadChunk_NotOwnerIsBadRequest(t *testing.T) {
	server, store := newTestGateway(t)

	code, err := store.ReserveAccount(1024*1024*1024, catalog.ReservationSalts{
		PasswordPublicSalt: []byte("a"), PasswordPrivateSalt: []byte("b"), MasterKeySalt: []byte("c"),
	})
	require.NoError(t, err)
	_, err = store.Claim(code, "owner", "hash", catalog.Keypairs{})
	require.NoError(t, err)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	code2, err := store.ReserveAccount(1024*1024*1024, catalog.ReservationSalts{
		PasswordPublicSalt: []byte("d"), PasswordPrivateSalt: []byte("e"), MasterKeySalt: []byte("f"),
	})
	require.NoError(t, err)
	passwordHash := hexPasswordHash(3)
	claimResp := postJSON(t, client, server.URL+"/api/claimaccount", map[string]interface{}{
		"code": code2, "username": "other", "password": passwordHash, "keypairs": dummyKeypairs(),
	})
	claimResp.Body.Close()
	loginResp := postJSON(t, client, server.URL+"/api/login", map[string]string{
		"username": "other", "password": passwordHash,
	})
	loginResp.Body.Close()

	resp := postJSON(t, client, server.URL+"/api/transfer/downloadchunk", map[string]interface{}{
		"handle": "nosuchhandle0001", "chunkId": 0,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
