// Package handlers implements the gateway's route handlers: translating
// HTTP requests into calls against the auth/catalog/upload/download
// packages, and their results back into the wire responses the route
// table promises.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pineappleswan/treasury/pkg/auth"
	"github.com/pineappleswan/treasury/pkg/catalog"
	"github.com/pineappleswan/treasury/pkg/download"
	"github.com/pineappleswan/treasury/pkg/upload"
)

// errBadJSON is reported for a request body that doesn't decode into the
// expected shape.
var errBadJSON = errors.New("malformed request body")

type errorBody struct {
	Message string `json:"message"`
}

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeStatus writes a bare status code with no body.
func writeStatus(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// writeError maps a domain sentinel error to its HTTP status and writes a
// {"message": ...} body.
func writeError(w http.ResponseWriter, err error) {
	status := httpStatusFor(err)
	writeJSON(w, status, errorBody{Message: err.Error()})
}

// httpStatusFor maps a domain sentinel error, from whichever package
// produced it, to the single HTTP status the gateway reports. This is the
// one place the error taxonomy is translated to wire status codes; every
// handler funnels its non-nil errors through writeError instead of
// switching on status codes itself.
func httpStatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	// AuthRequired.
	case errors.Is(err, auth.ErrSessionNotFound):
		return http.StatusUnauthorized

	// NotAuthorised: deliberately ambiguous with MalformedInput (400) to
	// avoid confirming a resource's existence to a session that doesn't
	// own it.
	case errors.Is(err, catalog.ErrNotOwner),
		errors.Is(err, catalog.ErrInvalidParent),
		errors.Is(err, catalog.ErrFileNotFound),
		errors.Is(err, upload.ErrNotOwner),
		errors.Is(err, upload.ErrSessionNotFound),
		errors.Is(err, download.ErrNotOwner),
		errors.Is(err, download.ErrNotFound):
		return http.StatusBadRequest

	// MalformedInput.
	case errors.Is(err, errBadJSON),
		errors.Is(err, auth.ErrInvalidShape),
		errors.Is(err, upload.ErrInvalidChunkShape),
		errors.Is(err, upload.ErrInvalidFinalise),
		errors.Is(err, upload.ErrSizeMismatch),
		errors.Is(err, upload.ErrInvalidSize):
		return http.StatusBadRequest

	// InvalidCredentials / UnknownUser.
	case errors.Is(err, auth.ErrIncorrectCredentials),
		errors.Is(err, auth.ErrInvalidCode):
		return http.StatusBadRequest

	// Conflict.
	case errors.Is(err, auth.ErrAlreadyAuthenticated),
		errors.Is(err, auth.ErrUsernameTaken),
		errors.Is(err, catalog.ErrDuplicateUsername),
		errors.Is(err, catalog.ErrClaimCodeUsed):
		return http.StatusBadRequest

	// RateLimited / TooManyInFlight.
	case errors.Is(err, auth.ErrRateLimited),
		errors.Is(err, upload.ErrTooManyPending):
		return http.StatusTooManyRequests

	// PayloadTooLarge.
	case errors.Is(err, upload.ErrQuotaExceeded),
		errors.Is(err, upload.ErrExcessBytes):
		return http.StatusRequestEntityTooLarge

	default:
		return http.StatusInternalServerError
	}
}
