// Package tokenstore holds the current access token for the request
// pipeline.
//
// A Store never fails: Get reports whether a token is present, Set and
// Clear always succeed from the caller's point of view. Implementations
// must make a mutation visible to every subsequent Get immediately.
//
// Every mutation advances Version. A writer that read Version before a
// slow operation (a token refresh) uses SetIfVersion so a logout or a new
// login that happened meanwhile is not overwritten.
package tokenstore

import "sync"

// Store is the single owner of the access token.
type Store interface {
	Get() (string, bool)
	Set(token string)
	Clear()
	// Version counts mutations.
	Version() uint64
	// SetIfVersion stores token, or clears when token is empty, only if
	// no mutation happened since Version returned version.
	SetIfVersion(version uint64, token string) bool
}

// MemoryStore keeps the token in process memory only.
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	version uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.version++
}

func (s *MemoryStore) Clear() {
	s.Set("")
}

func (s *MemoryStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *MemoryStore) SetIfVersion(version uint64, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return false
	}
	s.token = token
	s.version++
	return true
}
