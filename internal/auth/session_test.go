package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSessionStoreCreateAndValidate(t *testing.T) {
	s := NewSessionStore(SessionStoreConfig{IdleTimeout: time.Hour})
	token := s.Create(42)

	userID, err := s.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if userID != 42 {
		t.Errorf("userID = %d, want 42", userID)
	}
}

func TestSessionStoreExpiresAfterIdleTimeout(t *testing.T) {
	s := NewSessionStore(SessionStoreConfig{IdleTimeout: 20 * time.Millisecond})
	token := s.Create(1)

	time.Sleep(30 * time.Millisecond)

	_, err := s.Validate(token)
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != SessionExpired {
		t.Fatalf("expected SessionExpired, got %v", err)
	}
}

func TestSessionStoreUnknownTokenIsNotFound(t *testing.T) {
	s := NewSessionStore(SessionStoreConfig{IdleTimeout: time.Hour})
	_, err := s.Validate("does-not-exist")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != SessionNotFound {
		t.Fatalf("expected SessionNotFound, got %v", err)
	}
}

func TestRateLimiterDeniesAfterMaxAttempts(t *testing.T) {
	r := NewRateLimiter(RateLimiterConfig{MaxAttempts: 2, WindowSeconds: 60})

	if err := r.Check("id"); err != nil {
		t.Fatalf("first check: %v", err)
	}
	r.RecordAttempt("id")

	if err := r.Check("id"); err != nil {
		t.Fatalf("second check: %v", err)
	}
	r.RecordAttempt("id")

	err := r.Check("id")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != RateLimited {
		t.Fatalf("expected RateLimited after max attempts, got %v", err)
	}
}

func TestLockoutManagerChecksAndClears(t *testing.T) {
	m := NewLockoutManager(LockoutConfig{MaxFailures: 2, LockoutDuration: time.Hour})

	m.RecordFailure("greg")
	if err := m.Check("greg"); err != nil {
		t.Fatalf("expected unlocked after one failure, got %v", err)
	}

	m.RecordFailure("greg")
	var ae *AuthError
	if err := m.Check("greg"); !errors.As(err, &ae) || ae.Kind != AccountLocked {
		t.Fatalf("expected AccountLocked after two failures, got %v", err)
	}

	m.Clear("greg")
	if err := m.Check("greg"); err != nil {
		t.Fatalf("expected unlocked after Clear, got %v", err)
	}
}
