package mcp

import (
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
)

// ErrDuplicateSession is returned when registering an id that is already in use.
var ErrDuplicateSession = errors.New("duplicate session id")

// NewSessionID returns a fresh identifier, unique for the life of the process.
func NewSessionID() string {
	return ulid.Make().String()
}

// SessionTable maps session ids to live sessions. A session leaves the table
// when it closes, whatever closed it.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*Session)}
}

// Register adds s to the table and arranges for its removal on close.
func (t *SessionTable) Register(s *Session) error {
	t.mu.Lock()
	if _, exists := t.sessions[s.ID()]; exists {
		t.mu.Unlock()
		return ErrDuplicateSession
	}
	t.sessions[s.ID()] = s
	t.mu.Unlock()

	s.OnClose(func(s *Session) {
		t.remove(s)
	})
	return nil
}

// Lookup returns the live session registered under id.
func (t *SessionTable) Lookup(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// CloseAll closes every registered session.
func (t *SessionTable) CloseAll() {
	t.mu.RLock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.RUnlock()

	// Close callbacks take the write lock.
	for _, s := range sessions {
		s.Close()
	}
}

func (t *SessionTable) remove(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessions[s.ID()] == s {
		delete(t.sessions, s.ID())
	}
}
