package logger

import "log/slog"

// Standard field keys for structured logging across the gateway, catalog,
// upload/download coordinators and lifecycle sweepers.
const (
	KeyRequestID = "request_id"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyStatus    = "status"
	KeyBytes     = "bytes"
	KeyDuration  = "duration"

	KeyClientIP = "client_ip"
	KeyUsername = "username"
	KeyUserID   = "user_id"

	KeyHandle    = "handle"
	KeyChunkID   = "chunk_id"
	KeySize      = "size"
	KeyQuota     = "quota"
	KeyBytesUsed = "bytes_used"

	KeyError = "error"
)

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Handle returns a slog.Attr for a file/upload handle.
func Handle(h string) slog.Attr {
	return slog.String(KeyHandle, h)
}

// Username returns a slog.Attr for a username.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}
