package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/pineappleswan/treasury/pkg/api/middleware"
	"github.com/pineappleswan/treasury/pkg/auth"
	"github.com/pineappleswan/treasury/pkg/blob"
	"github.com/pineappleswan/treasury/pkg/catalog"
)

// FilesystemHandler serves the catalog read/write routes: listing
// directory children, creating folders, and editing metadata.
type FilesystemHandler struct {
	catalog *catalog.Store
}

// NewFilesystemHandler constructs a FilesystemHandler.
func NewFilesystemHandler(store *catalog.Store) *FilesystemHandler {
	return &FilesystemHandler{catalog: store}
}

type getFilesystemRequest struct {
	Handle string `json:"handle"`
}

type fileEntryWire struct {
	Handle                string `json:"handle"`
	ParentHandle          string `json:"parentHandle"`
	SizeBytes             uint64 `json:"sizeBytes"`
	EncryptedMetadataB64  string `json:"encryptedMetadataB64"`
	IsFolder              bool   `json:"isFolder"`
}

// GetFilesystem implements POST /api/getfilesystem: the children of a
// parent handle (the root handle is requested with an empty/omitted field).
func (h *FilesystemHandler) GetFilesystem(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var req getFilesystemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Handle == "" {
		req.Handle = blob.RootHandle
	}

	entries, err := h.catalog.ListChildren(session.UserID, req.Handle)
	if err != nil {
		writeError(w, err)
		return
	}

	wire := make([]fileEntryWire, len(entries))
	for i, entry := range entries {
		wire[i] = fileEntryWire{
			Handle:               entry.Handle,
			ParentHandle:         entry.ParentHandle,
			SizeBytes:            entry.SizeBytes,
			EncryptedMetadataB64: base64.StdEncoding.EncodeToString(entry.EncryptedMetadata),
			IsFolder:             entry.IsFolder(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": wire})
}

type createFolderRequest struct {
	ParentHandle         string `json:"parentHandle"`
	EncryptedMetadataB64 string `json:"encryptedMetadataB64"`
}

// CreateFolder implements POST /api/filesystem/createFolder.
func (h *FilesystemHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var req createFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	metadata, err := base64.StdEncoding.DecodeString(req.EncryptedMetadataB64)
	if err != nil || len(metadata) > blob.MaxMetadataSize {
		writeError(w, errBadJSON)
		return
	}

	handle, err := auth.NewUploadHandle()
	if err != nil {
		writeError(w, err)
		return
	}

	parentHandle := req.ParentHandle
	if parentHandle == "" {
		parentHandle = blob.RootHandle
	}

	entry := &catalog.FileEntry{
		Handle:            handle,
		ParentHandle:      parentHandle,
		EncryptedMetadata: metadata,
	}
	if err := h.catalog.InsertFile(session.UserID, entry); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"handle": handle})
}

type editMetadataEntry struct {
	Handle               string `json:"handle"`
	EncryptedMetadataB64 string `json:"encryptedMetadataB64"`
}

// EditMetadata implements POST /api/filesystem/editmetadata: a batch of
// {handle, metadata} updates, each checked for ownership independently.
func (h *FilesystemHandler) EditMetadata(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var req []editMetadataEntry
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	for _, entry := range req {
		metadata, err := base64.StdEncoding.DecodeString(entry.EncryptedMetadataB64)
		if err != nil || len(metadata) > blob.MaxMetadataSize {
			writeError(w, errBadJSON)
			return
		}
		if err := h.catalog.UpdateMetadata(session.UserID, entry.Handle, metadata); err != nil {
			writeError(w, err)
			return
		}
	}

	writeStatus(w, http.StatusOK)
}

// GetStorageQuota implements GET /api/getstoragequota.
func (h *FilesystemHandler) GetStorageQuota(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	user, err := h.catalog.LookupUserByID(session.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"value": user.StorageQuotaBytes})
}

// GetStorageUsed implements GET /api/getstorageused.
func (h *FilesystemHandler) GetStorageUsed(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	used, err := h.catalog.BytesUsed(session.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"value": used})
}
