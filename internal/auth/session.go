package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the (token, user id, created-at, last-activity) tuple; its
// lifetime is bounded by the store's idle timeout.
type Session struct {
	Token        string
	UserID       int
	CreatedAt    time.Time
	LastActivity time.Time
}

// SessionStoreConfig configures idle expiry.
type SessionStoreConfig struct {
	IdleTimeout time.Duration
}

// SessionStore is an in-process token-to-Session map, generalized from
// internal/session/registry.go's node-ID-keyed SessionRegistry to opaque
// token keying. All operations run under a single read/write lock.
type SessionStore struct {
	cfg      SessionStoreConfig
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore(cfg SessionStoreConfig) *SessionStore {
	return &SessionStore{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create mints a new high-entropy token and stores a session for userID.
func (s *SessionStore) Create(userID int) string {
	token := uuid.NewString()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = &Session{
		Token:        token,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
	}
	return token
}

// Validate returns the user id for token, refreshing LastActivity, or
// SessionNotFound/SessionExpired. An idle-expired session is removed from
// the store as a side effect.
func (s *SessionStore) Validate(token string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return 0, &AuthError{Kind: SessionNotFound}
	}
	if time.Since(sess.LastActivity) > s.cfg.IdleTimeout {
		delete(s.sessions, token)
		return 0, &AuthError{Kind: SessionExpired}
	}
	sess.LastActivity = time.Now()
	return sess.UserID, nil
}

// Logout removes token from the store. Returns false if the token was not
// present (already logged out or never existed).
func (s *SessionStore) Logout(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// LogoutAll removes every session belonging to userID and returns the
// count removed, used by admin force-logout, password change, and account
// suspension.
func (s *SessionStore) LogoutAll(userID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
			count++
		}
	}
	return count
}
