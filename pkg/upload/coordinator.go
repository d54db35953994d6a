// Package upload implements the upload coordinator: the chunked-write
// state machine that assembles client-encrypted chunks into a .tef blob on
// disk and, on finalise, inserts the resulting catalog row.
package upload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pineappleswan/treasury/internal/logger"
	"github.com/pineappleswan/treasury/pkg/blob"
	"github.com/pineappleswan/treasury/pkg/catalog"
)

// Coordinator tracks every in-flight Session, keyed by handle, and mediates
// their access to the catalog and the temp/storage directories.
type Coordinator struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	catalog    *catalog.Store
	tempDir    string
	storageDir string
}

// NewCoordinator constructs a Coordinator backed by store, writing temp
// files under tempDir and finalised blobs under storageDir.
func NewCoordinator(store *catalog.Store, tempDir, storageDir string) (*Coordinator, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Coordinator{
		sessions:   make(map[string]*Session),
		catalog:    store,
		tempDir:    tempDir,
		storageDir: storageDir,
	}, nil
}

// pendingBytesForOwner sums the declared size of every other in-flight
// session belonging to ownerID, so quota checks account for concurrent
// uploads that haven't been finalised (and so aren't in bytes_used yet).
func (c *Coordinator) pendingBytesForOwner(ownerID uint, excludeHandle string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total uint64
	for handle, session := range c.sessions {
		if handle == excludeHandle || session.OwnerID != ownerID {
			continue
		}
		total += session.DeclaredEncryptedSize
	}
	return total
}

func (c *Coordinator) checkQuota(ownerID uint, encryptedSize uint64, excludeHandle string) error {
	user, err := c.catalog.LookupUserByID(ownerID)
	if err != nil {
		return err
	}

	used, err := c.catalog.BytesUsed(ownerID)
	if err != nil {
		return err
	}

	pending := c.pendingBytesForOwner(ownerID, excludeHandle)
	projected := used + pending + blob.RawSize(encryptedSize)
	if projected > user.StorageQuotaBytes {
		return ErrQuotaExceeded
	}
	return nil
}

// Start validates the declared size, checks quota, and opens a fresh
// upload session, returning its handle.
func (c *Coordinator) Start(ownerID uint, encryptedSize uint64) (string, error) {
	if encryptedSize != 0 && (encryptedSize < uint64(blob.ChunkExtraDataSize) || encryptedSize > blob.MaxFileSize) {
		return "", ErrInvalidSize
	}

	if err := c.checkQuota(ownerID, encryptedSize, ""); err != nil {
		return "", err
	}

	handle, err := blob.GenerateAlphanumeric(blob.FileHandleLength)
	if err != nil {
		return "", fmt.Errorf("generate handle: %w", err)
	}

	tempPath := filepath.Join(c.tempDir, handle+".tef")
	sink, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := sink.Write(blob.FileMagic[:]); err != nil {
		sink.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("write header: %w", err)
	}

	session := &Session{
		Handle:                handle,
		OwnerID:               ownerID,
		DeclaredEncryptedSize: encryptedSize,
		TempPath:              tempPath,
		sink:                  sink,
		writtenBytes:          blob.HeaderSize,
		lastWrittenChunkID:    -1,
		lastActivity:          time.Now(),
	}

	c.mu.Lock()
	c.sessions[handle] = session
	c.mu.Unlock()

	logger.Info("upload started", logger.Handle(handle), "owner_id", ownerID, "encrypted_size", encryptedSize)
	return handle, nil
}

func (c *Coordinator) lookupSession(ownerID uint, handle string) (*Session, error) {
	c.mu.RLock()
	session, ok := c.sessions[handle]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return session, nil
}

// fail removes the session, closes its sink, and deletes its temp file.
// Called on any condition that permanently invalidates an upload.
func (c *Coordinator) fail(session *Session) {
	c.mu.Lock()
	delete(c.sessions, session.Handle)
	c.mu.Unlock()

	session.sink.Close()
	os.Remove(session.TempPath)
}

// Chunk validates and, if it is the next expected chunk (or becomes next
// after this call), commits one or more buffered chunks to the session's
// sink in order.
func (c *Coordinator) Chunk(ownerID uint, handle string, chunkID uint64, data []byte) error {
	if len(data) < blob.ChunkExtraDataSize || len(data) > blob.ChunkFullSize {
		return ErrInvalidChunkShape
	}
	if !bytes.Equal(data[:4], blob.ChunkMagic[:]) {
		return ErrInvalidChunkShape
	}

	session, err := c.lookupSession(ownerID, handle)
	if err != nil {
		return err
	}

	session.lock.Lock()
	defer session.lock.Unlock()

	if len(session.reorderBuffer) >= blob.MaxConcurrentChunks {
		return ErrTooManyPending
	}
	session.reorderBuffer = append(session.reorderBuffer, pendingChunk{chunkID: chunkID, data: data})
	sort.Slice(session.reorderBuffer, func(i, j int) bool {
		return session.reorderBuffer[i].chunkID < session.reorderBuffer[j].chunkID
	})

	for len(session.reorderBuffer) > 0 && session.reorderBuffer[0].chunkID == uint64(session.lastWrittenChunkID+1) {
		head := session.reorderBuffer[0]

		bytesLeft := uint64(0)
		if session.DeclaredEncryptedSize > session.writtenBytes {
			bytesLeft = session.DeclaredEncryptedSize - session.writtenBytes
		}
		expectedFull := bytesLeft
		if expectedFull > uint64(blob.ChunkFullSize) {
			expectedFull = uint64(blob.ChunkFullSize)
		}

		if bytesLeft == 0 {
			c.fail(session)
			return ErrExcessBytes
		}
		if uint64(len(head.data)) != expectedFull {
			c.fail(session)
			return ErrSizeMismatch
		}

		if _, err := session.sink.Write(head.data); err != nil {
			c.fail(session)
			return fmt.Errorf("write chunk: %w", err)
		}

		session.writtenBytes += uint64(len(head.data))
		session.lastWrittenChunkID++
		session.reorderBuffer = session.reorderBuffer[1:]
	}

	session.touch()
	return nil
}

// FinaliseRequest carries the client-supplied, server-opaque file metadata
// attached at finalise time.
type FinaliseRequest struct {
	ParentHandle      string
	EncryptedMetadata []byte
	EncryptedCryptKey []byte
	SignatureBase64   string
}

// Finalise verifies the session is complete, atomically renames its temp
// file into the storage directory, and inserts the resulting FileEntry.
func (c *Coordinator) Finalise(ownerID uint, handle string, req FinaliseRequest) (*catalog.FileEntry, error) {
	if len(req.ParentHandle) != blob.FileHandleLength || !blob.IsAlphanumeric(req.ParentHandle) {
		return nil, ErrInvalidFinalise
	}
	if len(req.EncryptedMetadata) > blob.MaxMetadataSize {
		return nil, ErrInvalidFinalise
	}
	if len(req.EncryptedCryptKey) != blob.CryptKeySize {
		return nil, ErrInvalidFinalise
	}
	signature, err := base64.StdEncoding.DecodeString(req.SignatureBase64)
	if err != nil || len(signature) != blob.SignatureSize {
		return nil, ErrInvalidFinalise
	}

	session, err := c.lookupSession(ownerID, handle)
	if err != nil {
		return nil, err
	}

	session.lock.Lock()
	// A declared size of 0 (an empty file) never receives any chunks, so
	// writtenBytes stops at the header alone; that is the complete state
	// for this case, not a short write.
	complete := session.writtenBytes == session.DeclaredEncryptedSize ||
		(session.DeclaredEncryptedSize == 0 && session.writtenBytes == blob.HeaderSize)
	if !complete {
		session.lock.Unlock()
		c.fail(session)
		return nil, ErrSizeMismatch
	}
	session.sink.Close()
	session.lock.Unlock()

	finalPath := filepath.Join(c.storageDir, handle+".tef")
	if err := os.Rename(session.TempPath, finalPath); err != nil {
		c.mu.Lock()
		delete(c.sessions, handle)
		c.mu.Unlock()
		return nil, fmt.Errorf("rename to storage: %w", err)
	}

	entry := &catalog.FileEntry{
		Handle:                handle,
		ParentHandle:          req.ParentHandle,
		SizeBytes:             blob.RawSize(session.DeclaredEncryptedSize),
		EncryptedFileCryptKey: req.EncryptedCryptKey,
		EncryptedMetadata:     req.EncryptedMetadata,
		Signature:             req.SignatureBase64,
	}

	c.mu.Lock()
	delete(c.sessions, handle)
	c.mu.Unlock()

	if err := c.catalog.InsertFile(ownerID, entry); err != nil {
		// The blob is retained on disk for operator recovery; no catalog
		// row exists for it until manually repaired.
		logger.Error("finalise insert failed after rename", logger.Handle(handle), logger.Err(err))
		return nil, err
	}

	logger.Info("upload finalised", logger.Handle(handle), "size", entry.SizeBytes)
	return entry, nil
}

// Cancel is best-effort and idempotent: it closes the sink, deletes the
// temp file, and drops the session. Unknown handles are reported as
// ErrSessionNotFound (the gateway maps this to 400, per spec).
func (c *Coordinator) Cancel(ownerID uint, handle string) error {
	session, err := c.lookupSession(ownerID, handle)
	if err != nil {
		return err
	}
	c.fail(session)
	return nil
}

// SweepIdle cancels every session whose last activity exceeds threshold,
// releasing its sink and deleting its temp file. Run periodically by the
// lifecycle manager.
func (c *Coordinator) SweepIdle(threshold time.Duration) int {
	c.mu.RLock()
	var stale []*Session
	for _, session := range c.sessions {
		if session.idleSince() > threshold {
			stale = append(stale, session)
		}
	}
	c.mu.RUnlock()

	for _, session := range stale {
		c.fail(session)
	}
	if len(stale) > 0 {
		logger.Info("upload sweep cancelled idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Count returns the number of in-flight sessions, for diagnostics.
func (c *Coordinator) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
