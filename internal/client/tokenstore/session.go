package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/logging"
	"github.com/google/uuid"
)

const persistTimeout = 2 * time.Second

// SessionStore is a write-through Store scoped to one session.
//
// Reads are served from memory. Set and Clear also write to the repository
// so a restarted process that reopens the same session ID gets the token
// back. End drops the session's row; a new session ID starts empty.
// Repository failures are logged and never surface to callers.
type SessionStore struct {
	mu      sync.RWMutex
	token   string
	version uint64

	// writeMu keeps the memory update and the persisted row in the same order.
	writeMu sync.Mutex

	sessionID string
	repo      Repository
	logger    logging.Logger
}

// OpenSessionStore restores the token for sessionID. An empty sessionID
// starts a new session with a random ID.
func OpenSessionStore(ctx context.Context, repo Repository, sessionID string, logger logging.Logger) (*SessionStore, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	token, found, err := repo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", sessionID, err)
	}

	s := &SessionStore{
		sessionID: sessionID,
		repo:      repo,
		logger:    logger.With("component", "tokenstore", "session_id", sessionID),
	}
	if found {
		s.token = token
		s.logger.Debug(ctx, "session token restored")
	}
	return s, nil
}

// SessionID identifies the session; pass it back to OpenSessionStore to
// resume.
func (s *SessionStore) SessionID() string {
	return s.sessionID
}

func (s *SessionStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *SessionStore) Set(token string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.token = token
	s.version++
	s.mu.Unlock()

	s.persist(token)
}

func (s *SessionStore) Clear() {
	s.Set("")
}

func (s *SessionStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *SessionStore) SetIfVersion(version uint64, token string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.version != version {
		s.mu.Unlock()
		return false
	}
	s.token = token
	s.version++
	s.mu.Unlock()

	s.persist(token)
	return true
}

// persist mirrors token to the repository. Callers hold writeMu.
func (s *SessionStore) persist(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if token == "" {
		if err := s.repo.Delete(ctx, s.sessionID); err != nil {
			s.logger.Error(ctx, "delete session token", "error", err)
		}
		return
	}
	if err := s.repo.Put(ctx, s.sessionID, token); err != nil {
		s.logger.Error(ctx, "persist session token", "error", err)
	}
}

// End finishes the session: memory and persisted state are both dropped.
func (s *SessionStore) End(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.token = ""
	s.version++
	s.mu.Unlock()

	return s.repo.Delete(ctx, s.sessionID)
}
