package catalog

import "errors"

// Domain errors for catalog operations, checked with errors.Is at call sites.
var (
	// ErrUserNotFound is returned when a username has no matching account.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUsername is returned when claim/create targets a taken username.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrReservationNotFound is returned when a claim code has no pending reservation.
	ErrReservationNotFound = errors.New("invalid claim code")

	// ErrClaimCodeUsed is returned when a claim code was already consumed.
	ErrClaimCodeUsed = errors.New("code already used")

	// ErrFileNotFound is returned when a handle has no matching catalog row.
	ErrFileNotFound = errors.New("file not found")

	// ErrNotOwner is returned when a caller references a handle it does not own.
	ErrNotOwner = errors.New("not the owner of this resource")

	// ErrInvalidParent is returned when a parent handle does not belong to the caller.
	ErrInvalidParent = errors.New("invalid parent handle")
)
