package download

import "errors"

// Domain errors for the download streamer.
var (
	// ErrNotFound is returned when the handle has no on-disk blob.
	ErrNotFound = errors.New("file not found")

	// ErrNotOwner is returned when the caller does not own the handle.
	ErrNotOwner = errors.New("not the owner of this resource")
)
