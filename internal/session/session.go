package session

import (
	"net"
	"sync"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/user"
)

// BbsSession tracks one connected node's state: which user (if any) is
// authenticated on it, what the node is currently doing, and idle
// bookkeeping. It is deliberately transport-agnostic: an earlier version
// embedded an SSH channel, PTY, and terminal directly; those belong to
// the out-of-scope network listener, not to the session-state concern
// this package now models. A connection task
// authenticates via internal/auth.Core.Login, gets back a session token,
// and registers a BbsSession here under its NodeID for admin visibility
// ("who's online") and page-message delivery.
type BbsSession struct {
	NodeID       int
	SessionToken string // token returned by auth.Core.Login, empty until authenticated
	User         *user.User
	RemoteAddr   net.Addr
	CurrentMenu  string
	LastMenu     string
	StartTime    time.Time
	LastActivity time.Time

	mu           sync.Mutex
	pendingPages []string
}

// AddPage queues a page message for delivery at the user's next prompt.
func (s *BbsSession) AddPage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPages = append(s.pendingPages, msg)
}

// DrainPages returns all pending pages and clears the queue.
func (s *BbsSession) DrainPages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingPages) == 0 {
		return nil
	}
	pages := s.pendingPages
	s.pendingPages = nil
	return pages
}

// Touch refreshes LastActivity, called on every byte of input processed.
func (s *BbsSession) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivity = time.Now()
}

// IdleFor reports how long the session has been idle.
func (s *BbsSession) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastActivity)
}
