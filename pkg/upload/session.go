package upload

import (
	"os"
	"sync"
	"time"
)

// pendingChunk is a chunk parked in a session's reorder buffer, waiting for
// its predecessors to commit.
type pendingChunk struct {
	chunkID uint64
	data    []byte
}

// Session is the in-memory state machine for one in-flight upload. Its lock
// is held across the reorder-buffer scan, every sink append within a chunk
// request, and the finalise verification+close step.
type Session struct {
	Handle                string
	OwnerID               uint
	DeclaredEncryptedSize uint64

	TempPath string
	sink     *os.File

	lock sync.Mutex

	writtenBytes       uint64
	lastWrittenChunkID int64 // -1 sentinel: no chunk written yet
	reorderBuffer      []pendingChunk

	lastActivity time.Time
}

// WrittenBytes returns the session's current committed byte count.
func (s *Session) WrittenBytes() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.writtenBytes
}

// touch records activity for the idle sweeper.
func (s *Session) touch() {
	s.lastActivity = time.Now()
}

// idleSince reports how long the session has been inactive.
func (s *Session) idleSince() time.Duration {
	return time.Since(s.lastActivity)
}
