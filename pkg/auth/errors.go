package auth

import "errors"

// Domain errors for the session authenticator, checked with errors.Is.
var (
	// ErrAlreadyAuthenticated is returned when login is called on a session
	// that is already logged in.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrInvalidShape is returned when a username or password hash fails
	// its shape validation.
	ErrInvalidShape = errors.New("invalid request shape")

	// ErrIncorrectCredentials is the uniform error for both a genuinely
	// wrong password and a non-existent username with a non-empty hash,
	// so the two are indistinguishable to a caller.
	ErrIncorrectCredentials = errors.New("incorrect credentials")

	// ErrInvalidCode is returned for a claim probe/commit against an
	// unknown claim code.
	ErrInvalidCode = errors.New("invalid code")

	// ErrUsernameTaken is returned when a claim commit targets a username
	// that already has an account.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrSessionNotFound is returned when a token has no active session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRateLimited is returned when a client exceeds the login/claim
	// request budget.
	ErrRateLimited = errors.New("too many requests")
)
