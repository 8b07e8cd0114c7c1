// ABOUTME: In-memory session store created at startup and cleared at shutdown.
// ABOUTME: Sessions are keyed by a uuid and remember the channel that opened them.

package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one initialize handshake.
type Session struct {
	ID        string
	ChannelID string
	CreatedAt time.Time
	LastSeen  time.Time
}

// SessionStore tracks live sessions. It has no expiry; sessions leave only
// through Drop, DropChannel or Clear.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create allocates a session with a fresh identifier for channelID.
func (s *SessionStore) Create(channelID string) Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.New().String(),
		ChannelID: channelID,
		CreatedAt: now,
		LastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return *sess
}

// Get returns a copy of the session with the given id.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Touch updates LastSeen and reports whether the session exists.
func (s *SessionStore) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.LastSeen = s.now()
	}
	return ok
}

// Drop removes a session and reports whether it existed.
func (s *SessionStore) Drop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// DropChannel removes every session opened on channelID and returns how many went.
func (s *SessionStore) DropChannel(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.ChannelID == channelID {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Clear removes every session.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	clear(s.sessions)
	s.mu.Unlock()
}
