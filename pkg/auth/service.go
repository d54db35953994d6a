// Package auth implements the session authenticator: password-hash
// verification, the account-claim ceremony, session token lifecycle, and
// cover-traffic that hides account existence from observers.
package auth

import (
	"encoding/hex"
	"errors"

	"github.com/pineappleswan/treasury/pkg/blob"
	"github.com/pineappleswan/treasury/pkg/catalog"
)

// Service wires the session store to the catalog for login and claim.
type Service struct {
	catalog      *catalog.Store
	sessions     *SessionStore
	serverSecret []byte
}

// NewService constructs a Service over an open catalog store. serverSecret
// binds cover-traffic fake salts to this server instance.
func NewService(store *catalog.Store, sessions *SessionStore, serverSecret []byte) *Service {
	return &Service{
		catalog:      store,
		sessions:     sessions,
		serverSecret: serverSecret,
	}
}

// LoginResult is the outcome of a login call: exactly one of the fields
// relevant to the phase (salt request vs authentication) is populated.
type LoginResult struct {
	PublicSalt []byte // salt-request phase, real or fabricated

	// Authentication phase, populated only on successful verification.
	SessionToken               string
	MasterKeySalt              []byte
	Ed25519PrivateKeyEncrypted []byte
	Ed25519PublicKey           []byte
	X25519PrivateKeyEncrypted  []byte
	X25519PublicKey            []byte
}

// Login implements the two-phase login handshake described by the session
// authenticator: an empty passwordHash is a salt request, a populated one
// is an authentication attempt. Cover traffic makes both phases behave
// indistinguishably for unknown usernames.
func (s *Service) Login(username, passwordHash string) (*LoginResult, error) {
	if !ValidUsernameShape(username) || !ValidPasswordHashShape(passwordHash) {
		return nil, ErrInvalidShape
	}

	user, err := s.catalog.LookupUser(username)
	if errors.Is(err, catalog.ErrUserNotFound) {
		return s.coverTraffic(username, passwordHash), nil
	}
	if err != nil {
		return nil, err
	}

	if passwordHash == "" {
		return &LoginResult{PublicSalt: user.PasswordPublicSalt}, nil
	}

	if !VerifyPassword(passwordHash, user.PasswordPrivateSalt, user.PasswordHash) {
		return nil, ErrIncorrectCredentials
	}

	session, err := s.sessions.Create(user.Username, user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		SessionToken:               session.Token,
		MasterKeySalt:              user.MasterKeySalt,
		Ed25519PrivateKeyEncrypted: user.Ed25519PrivateKeyEncrypted,
		Ed25519PublicKey:           user.Ed25519PublicKey,
		X25519PrivateKeyEncrypted:  user.X25519PrivateKeyEncrypted,
		X25519PublicKey:            user.X25519PublicKey,
	}, nil
}

// coverTraffic handles the "user does not exist" branch: a salt request
// returns a deterministic fabricated salt, and an authentication attempt
// burns the same Argon2id cost as a real verification before returning the
// generic incorrect-credentials error.
func (s *Service) coverTraffic(username, passwordHash string) *LoginResult {
	if passwordHash == "" {
		fake := FakePublicSalt(username, s.serverSecret)
		return &LoginResult{PublicSalt: fake[:]}
	}
	wasteTimeOnFakeVerification(passwordHash)
	return nil
}

// ProbeResult is returned by ClaimProbe.
type ProbeResult struct {
	StorageQuotaBytes   uint64
	PasswordPublicSalt  []byte
	PasswordPrivateSalt []byte
	MasterKeySalt       []byte
}

// ClaimProbe returns the reservation details needed by a client to begin a
// claim ceremony, or ErrInvalidCode.
func (s *Service) ClaimProbe(code string) (*ProbeResult, error) {
	reservation, err := s.catalog.LookupReservation(code)
	if errors.Is(err, catalog.ErrReservationNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	return &ProbeResult{
		StorageQuotaBytes:   reservation.StorageQuotaBytes,
		PasswordPublicSalt:  reservation.PasswordPublicSalt,
		PasswordPrivateSalt: reservation.PasswordPrivateSalt,
		MasterKeySalt:       reservation.MasterKeySalt,
	}, nil
}

// ClaimKeypairs mirrors catalog.Keypairs at the auth-service boundary so
// callers in pkg/api don't import pkg/catalog directly for this shape.
type ClaimKeypairs = catalog.Keypairs

// ClaimCommit finalises a claim: validates shape, derives the stored
// verifier from the reservation's private salt, and performs the catalog's
// transactional claim.
func (s *Service) ClaimCommit(code, username, passwordHash string, keypairs ClaimKeypairs) (*catalog.User, error) {
	if !ValidUsernameShape(username) {
		return nil, ErrInvalidShape
	}
	if len(passwordHash) != passwordHashHexLength {
		return nil, ErrInvalidShape
	}
	if _, err := hex.DecodeString(passwordHash); err != nil {
		return nil, ErrInvalidShape
	}

	reservation, err := s.catalog.LookupReservation(code)
	if errors.Is(err, catalog.ErrReservationNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}

	verifierHex, err := HashForStorage(passwordHash, reservation.PasswordPrivateSalt)
	if err != nil {
		return nil, err
	}

	user, err := s.catalog.Claim(code, username, verifierHex, keypairs)
	if errors.Is(err, catalog.ErrDuplicateUsername) {
		return nil, ErrUsernameTaken
	}
	if errors.Is(err, catalog.ErrClaimCodeUsed) || errors.Is(err, catalog.ErrReservationNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout drops the session bound to token, if any.
func (s *Service) Logout(token string) {
	s.sessions.Drop(token)
}

// RequireSession resolves token to an active, logged-in session.
func (s *Service) RequireSession(token string) (*SessionEntry, error) {
	entry, err := s.sessions.Get(token)
	if err != nil {
		return nil, err
	}
	if !entry.LoggedIn {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

// NewUploadHandle reserves a fresh handle for an upload session, same shape
// as a file handle.
func NewUploadHandle() (string, error) {
	return blob.GenerateAlphanumeric(blob.FileHandleLength)
}
