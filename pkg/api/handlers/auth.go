package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pineappleswan/treasury/pkg/api/middleware"
	"github.com/pineappleswan/treasury/pkg/auth"
	"github.com/pineappleswan/treasury/pkg/catalog"
)

// AuthHandler serves the login/logout/claim/identity routes.
type AuthHandler struct {
	service       *auth.Service
	rateLimiter   *auth.ClientRateLimiter
	secureCookies bool
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service *auth.Service, rateLimiter *auth.ClientRateLimiter, secureCookies bool) *AuthHandler {
	return &AuthHandler{service: service, rateLimiter: rateLimiter, secureCookies: secureCookies}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	PublicSaltB64              string `json:"publicSaltB64,omitempty"`
	MasterKeySaltB64           string `json:"masterKeySaltB64,omitempty"`
	Ed25519PrivateKeyB64       string `json:"ed25519PrivateKeyEncryptedB64,omitempty"`
	Ed25519PublicKeyB64        string `json:"ed25519PublicKeyB64,omitempty"`
	X25519PrivateKeyB64        string `json:"x25519PrivateKeyEncryptedB64,omitempty"`
	X25519PublicKeyB64         string `json:"x25519PublicKeyB64,omitempty"`
}

// Login implements POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimiter.Allow(r.RemoteAddr) {
		writeError(w, auth.ErrRateLimited)
		return
	}

	if h.hasActiveSession(r) {
		writeError(w, auth.ErrAlreadyAuthenticated)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	result, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := loginResponse{PublicSaltB64: base64.StdEncoding.EncodeToString(result.PublicSalt)}
	if result.SessionToken != "" {
		middleware.SetSessionCookie(w, result.SessionToken, h.secureCookies)
		resp.MasterKeySaltB64 = base64.StdEncoding.EncodeToString(result.MasterKeySalt)
		resp.Ed25519PrivateKeyB64 = base64.StdEncoding.EncodeToString(result.Ed25519PrivateKeyEncrypted)
		resp.Ed25519PublicKeyB64 = base64.StdEncoding.EncodeToString(result.Ed25519PublicKey)
		resp.X25519PrivateKeyB64 = base64.StdEncoding.EncodeToString(result.X25519PrivateKeyEncrypted)
		resp.X25519PublicKeyB64 = base64.StdEncoding.EncodeToString(result.X25519PublicKey)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout implements POST /api/logout. It is safe to call without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.CookieName); err == nil {
		h.service.Logout(cookie.Value)
	}
	middleware.ClearSessionCookie(w, h.secureCookies)
	writeStatus(w, http.StatusOK)
}

type claimRequest struct {
	Code     string              `json:"code"`
	Username string              `json:"username,omitempty"`
	Password string              `json:"password,omitempty"`
	Keypairs *claimKeypairsWire  `json:"keypairs,omitempty"`
}

type claimKeypairsWire struct {
	Ed25519PrivateKeyEncryptedB64 string `json:"ed25519PrivateKeyEncryptedB64"`
	Ed25519PublicKeyB64           string `json:"ed25519PublicKeyB64"`
	X25519PrivateKeyEncryptedB64  string `json:"x25519PrivateKeyEncryptedB64"`
	X25519PublicKeyB64            string `json:"x25519PublicKeyB64"`
}

type claimProbeResponse struct {
	StorageQuotaBytes      uint64 `json:"storageQuotaBytes"`
	PasswordPublicSaltB64  string `json:"passwordPublicSaltB64"`
	PasswordPrivateSaltB64 string `json:"passwordPrivateSaltB64"`
	MasterKeySaltB64       string `json:"masterKeySaltB64"`
}

// ClaimAccount implements POST /api/claimaccount: a probe when username and
// password are both absent, a commit otherwise.
func (h *AuthHandler) ClaimAccount(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimiter.Allow(r.RemoteAddr) {
		writeError(w, auth.ErrRateLimited)
		return
	}

	var req claimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if req.Username == "" && req.Password == "" {
		probe, err := h.service.ClaimProbe(req.Code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, claimProbeResponse{
			StorageQuotaBytes:      probe.StorageQuotaBytes,
			PasswordPublicSaltB64:  base64.StdEncoding.EncodeToString(probe.PasswordPublicSalt),
			PasswordPrivateSaltB64: base64.StdEncoding.EncodeToString(probe.PasswordPrivateSalt),
			MasterKeySaltB64:       base64.StdEncoding.EncodeToString(probe.MasterKeySalt),
		})
		return
	}

	keypairs, err := decodeKeypairs(req.Keypairs)
	if err != nil {
		writeError(w, auth.ErrInvalidShape)
		return
	}

	if _, err := h.service.ClaimCommit(req.Code, req.Username, req.Password, keypairs); err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK)
}

// hasActiveSession reports whether the request carries a cookie that still
// resolves to a logged-in session, per the "already authenticated" redirect
// hint step of login.
func (h *AuthHandler) hasActiveSession(r *http.Request) bool {
	cookie, err := r.Cookie(middleware.CookieName)
	if err != nil {
		return false
	}
	_, err = h.service.RequireSession(cookie.Value)
	return err == nil
}

func decodeKeypairs(wire *claimKeypairsWire) (auth.ClaimKeypairs, error) {
	if wire == nil {
		return auth.ClaimKeypairs{}, errors.New("keypairs required")
	}
	ed25519Priv, err := base64.StdEncoding.DecodeString(wire.Ed25519PrivateKeyEncryptedB64)
	if err != nil {
		return auth.ClaimKeypairs{}, err
	}
	ed25519Pub, err := base64.StdEncoding.DecodeString(wire.Ed25519PublicKeyB64)
	if err != nil {
		return auth.ClaimKeypairs{}, err
	}
	x25519Priv, err := base64.StdEncoding.DecodeString(wire.X25519PrivateKeyEncryptedB64)
	if err != nil {
		return auth.ClaimKeypairs{}, err
	}
	x25519Pub, err := base64.StdEncoding.DecodeString(wire.X25519PublicKeyB64)
	if err != nil {
		return auth.ClaimKeypairs{}, err
	}
	return catalog.Keypairs{
		Ed25519PrivateKeyEncrypted: ed25519Priv,
		Ed25519PublicKey:           ed25519Pub,
		X25519PrivateKeyEncrypted:  x25519Priv,
		X25519PublicKey:            x25519Pub,
	}, nil
}

// IsLoggedIn implements GET /api/isloggedin. It never errors: an absent or
// invalid session simply reports false.
func (h *AuthHandler) IsLoggedIn(w http.ResponseWriter, r *http.Request) {
	loggedIn := false
	if cookie, err := r.Cookie(middleware.CookieName); err == nil {
		if _, err := h.service.RequireSession(cookie.Value); err == nil {
			loggedIn = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"value": loggedIn})
}

// GetUsername implements GET /api/getusername.
func (h *AuthHandler) GetUsername(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"value": session.Username})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, errBadJSON)
		return err
	}
	return nil
}
