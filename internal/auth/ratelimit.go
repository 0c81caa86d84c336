package auth

import (
	"sync"
	"time"
)

// RateLimiterConfig bounds attempts per identifier within a sliding window.
type RateLimiterConfig struct {
	MaxAttempts   int
	WindowSeconds int
}

// RateLimiter is a sliding-window-per-identifier counter with eviction of
// attempts that have aged out of the window. Re-keyed by (username or
// username+source-ip) rather than the raw client IP an SSH-only limiter
// would use, since login identities here aren't tied to a single
// transport.
type RateLimiter struct {
	cfg      RateLimiterConfig
	mu       sync.RWMutex
	attempts map[string][]time.Time
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		cfg:      cfg,
		attempts: make(map[string][]time.Time),
	}
}

// Check reports whether id may attempt another action right now. It does
// not itself record an attempt; callers record one via RecordAttempt only
// after Check succeeds.
func (r *RateLimiter) Check(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	valid := r.validAttemptsLocked(id, time.Now())
	if len(valid) >= r.cfg.MaxAttempts {
		oldest := valid[0]
		retryAfter := time.Duration(r.cfg.WindowSeconds)*time.Second - time.Since(oldest)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &AuthError{Kind: RateLimited, RetryAfter: retryAfter}
	}
	return nil
}

// RecordAttempt records an attempt at time.Now() for id, evicting attempts
// that have aged out of the window.
func (r *RateLimiter) RecordAttempt(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	valid := r.validAttemptsLocked(id, now)
	r.attempts[id] = append(valid, now)
}

// validAttemptsLocked returns id's attempts still inside the window as of
// now. Callers must hold r.mu (read or write).
func (r *RateLimiter) validAttemptsLocked(id string, now time.Time) []time.Time {
	cutoff := now.Add(-time.Duration(r.cfg.WindowSeconds) * time.Second)
	existing := r.attempts[id]
	valid := make([]time.Time, 0, len(existing))
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
