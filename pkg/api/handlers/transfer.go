package handlers

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"github.com/pineappleswan/treasury/pkg/api/middleware"
	"github.com/pineappleswan/treasury/pkg/blob"
	"github.com/pineappleswan/treasury/pkg/download"
	"github.com/pineappleswan/treasury/pkg/upload"
)

// TransferHandler serves the chunked upload/download routes.
type TransferHandler struct {
	coordinator *upload.Coordinator
	streamer    *download.Streamer
	maxRawBody  int64
}

// NewTransferHandler constructs a TransferHandler.
func NewTransferHandler(coordinator *upload.Coordinator, streamer *download.Streamer, maxRawBody int64) *TransferHandler {
	return &TransferHandler{coordinator: coordinator, streamer: streamer, maxRawBody: maxRawBody}
}

type startUploadRequest struct {
	FileSize uint64 `json:"fileSize"`
}

// StartUpload implements POST /api/transfer/startupload.
func (h *TransferHandler) StartUpload(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var req startUploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	handle, err := h.coordinator.Start(session.UserID, req.FileSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"handle": handle})
}

// UploadChunk implements POST /api/transfer/uploadchunk: a multipart body
// carrying {handle, chunkId, data}.
func (h *TransferHandler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRawBody)
	if err := r.ParseMultipartForm(int64(blob.ChunkFullSize) + 4096); err != nil {
		writeError(w, errBadJSON)
		return
	}

	handle := r.FormValue("handle")
	chunkID, err := strconv.ParseUint(r.FormValue("chunkId"), 10, 64)
	if err != nil {
		writeError(w, errBadJSON)
		return
	}

	file, _, err := r.FormFile("data")
	if err != nil {
		writeError(w, errBadJSON)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errBadJSON)
		return
	}

	if err := h.coordinator.Chunk(session.UserID, handle, chunkID, data); err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK)
}

type finaliseUploadRequest struct {
	Handle                   string `json:"handle"`
	ParentHandle             string `json:"parentHandle"`
	EncryptedMetadataB64     string `json:"encryptedMetadataB64"`
	EncryptedFileCryptKeyB64 string `json:"encryptedFileCryptKeyB64"`
	Signature                string `json:"signature"`
}

// FinaliseUpload implements POST /api/transfer/finaliseupload.
func (h *TransferHandler) FinaliseUpload(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var req finaliseUploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	metadata, err := base64.StdEncoding.DecodeString(req.EncryptedMetadataB64)
	if err != nil {
		writeError(w, upload.ErrInvalidFinalise)
		return
	}
	cryptKey, err := base64.StdEncoding.DecodeString(req.EncryptedFileCryptKeyB64)
	if err != nil {
		writeError(w, upload.ErrInvalidFinalise)
		return
	}

	_, err = h.coordinator.Finalise(session.UserID, req.Handle, upload.FinaliseRequest{
		ParentHandle:      req.ParentHandle,
		EncryptedMetadata: metadata,
		EncryptedCryptKey: cryptKey,
		SignatureBase64:   req.Signature,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK)
}

type cancelUploadRequest struct {
	Handle string `json:"handle"`
}

// CancelUpload implements POST /api/transfer/cancelupload.
func (h *TransferHandler) CancelUpload(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var req cancelUploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if err := h.coordinator.Cancel(session.UserID, req.Handle); err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK)
}

type downloadChunkRequest struct {
	Handle  string `json:"handle"`
	ChunkID uint64 `json:"chunkId"`
}

// DownloadChunk implements POST /api/transfer/downloadchunk: JSON request,
// raw octet-stream response.
func (h *TransferHandler) DownloadChunk(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	var req downloadChunkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	chunk, err := h.streamer.Chunk(session.UserID, req.Handle, req.ChunkID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(chunk)
}
