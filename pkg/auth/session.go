package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pineappleswan/treasury/internal/logger"
)

// SessionEntry is the in-memory record bound to an opaque session token.
type SessionEntry struct {
	Token      string
	Username   string
	UserID     uint
	LoggedIn   bool
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// SessionStore maps opaque tokens to SessionEntry records and evicts stale
// entries on a timer. All mutation goes through a single RWMutex; the
// catalog's own locking is independent of this one.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionEntry
	ttl      time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSessionStore creates a store whose entries expire after ttl of
// inactivity, and starts its sweeper on interval.
func NewSessionStore(ttl, sweepInterval time.Duration) *SessionStore {
	store := &SessionStore{
		sessions: make(map[string]*SessionEntry),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go store.sweepLoop(sweepInterval)
	return store
}

// Create mints a new token bound to userID/username and stores it.
func (s *SessionStore) Create(username string, userID uint) (*SessionEntry, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, err
	}
	token := hex.EncodeToString(tokenBytes)

	now := time.Now()
	entry := &SessionEntry{
		Token:      token,
		Username:   username,
		UserID:     userID,
		LoggedIn:   true,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	s.mu.Lock()
	s.sessions[token] = entry
	s.mu.Unlock()

	return entry, nil
}

// Get returns the session for token, touching its last-seen time. Returns
// ErrSessionNotFound if absent or expired.
func (s *SessionStore) Get(token string) (*SessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.LastSeenAt = time.Now()
	return entry, nil
}

// Drop removes a session unconditionally.
func (s *SessionStore) Drop(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Count returns the number of active sessions, for diagnostics.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *SessionStore) sweep() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for token, entry := range s.sessions {
		if entry.LastSeenAt.Before(cutoff) {
			delete(s.sessions, token)
			evicted++
		}
	}
	if evicted > 0 {
		logger.Info("session sweep evicted expired sessions", "count", evicted)
	}
}

// Stop halts the sweeper goroutine. Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}
