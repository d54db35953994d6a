package upload

import "errors"

// Domain errors for the upload coordinator, checked with errors.Is at call
// sites and mapped to HTTP status codes by the gateway.
var (
	// ErrInvalidSize is returned when a declared encrypted size falls
	// outside [0, CHUNK_EXTRA_DATA_SIZE) ∪ [CHUNK_EXTRA_DATA_SIZE, MAX_FILE_SIZE].
	ErrInvalidSize = errors.New("invalid encrypted size")

	// ErrQuotaExceeded is returned when a start or chunk commit would push
	// the owner's total stored bytes past their quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrSessionNotFound is returned for an unknown or already-finalised
	// upload handle.
	ErrSessionNotFound = errors.New("upload session not found")

	// ErrNotOwner is returned when the caller does not own the session's
	// handle.
	ErrNotOwner = errors.New("not the owner of this upload session")

	// ErrInvalidChunkShape is returned when a chunk's size or magic bytes
	// don't match the wire format.
	ErrInvalidChunkShape = errors.New("invalid chunk shape")

	// ErrTooManyPending is returned when the reorder buffer is already at
	// MaxConcurrentChunks.
	ErrTooManyPending = errors.New("too many pending chunks")

	// ErrExcessBytes is returned when a chunk would write past the
	// declared encrypted size; the session is fatally failed.
	ErrExcessBytes = errors.New("chunk exceeds declared file size")

	// ErrSizeMismatch is returned when the session's accumulated bytes
	// don't equal the declared size at finalise time.
	ErrSizeMismatch = errors.New("written bytes do not match declared size")

	// ErrInvalidFinalise is returned for malformed finalise parameters.
	ErrInvalidFinalise = errors.New("invalid finalise parameters")
)
