package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/user"
)

func newTestCore(t *testing.T) (*Core, *user.UserMgr) {
	t.Helper()
	um, err := user.NewUserManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewUserManager: %v", err)
	}
	core := &Core{
		Users:       um,
		RateLimiter: NewRateLimiter(RateLimiterConfig{MaxAttempts: 1000, WindowSeconds: 60}),
		Lockout:     NewLockoutManager(LockoutConfig{MaxFailures: 3, LockoutDuration: time.Second}),
		Sessions:    NewSessionStore(SessionStoreConfig{IdleTimeout: time.Hour}),
	}
	return core, um
}

func TestLoginSuccess(t *testing.T) {
	core, um := newTestCore(t)
	if _, err := um.AddUser("alice", "correcthorse", "Alice", "", "", ""); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	result, err := core.Login("alice", "correcthorse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.SessionToken == "" {
		t.Error("expected a non-empty session token")
	}
	if result.User.Username != "alice" {
		t.Errorf("User.Username = %q, want alice", result.User.Username)
	}
}

func TestLoginUnknownAndWrongPasswordAreIndistinguishable(t *testing.T) {
	core, um := newTestCore(t)
	if _, err := um.AddUser("bob", "realpassword", "Bob", "", "", ""); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	_, err1 := core.Login("nosuchuser", "whatever")
	_, err2 := core.Login("bob", "wrongpassword")

	var ae1, ae2 *AuthError
	if !errors.As(err1, &ae1) || !errors.As(err2, &ae2) {
		t.Fatalf("expected AuthError from both, got %v / %v", err1, err2)
	}
	if ae1.Kind != InvalidCredentials || ae2.Kind != InvalidCredentials {
		t.Fatalf("expected both InvalidCredentials, got %v / %v", ae1.Kind, ae2.Kind)
	}
}

// TestLoginLockout covers scenario 5 from the message-base/auth test
// matrix: three failures lock the account; a fourth attempt (even with
// the correct password) is rejected while locked, and succeeds again
// after the lockout duration elapses.
func TestLoginLockout(t *testing.T) {
	core, um := newTestCore(t)
	if _, err := um.AddUser("carol", "thepassword", "Carol", "", "", ""); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := core.Login("carol", "wrongpassword"); err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
	}

	_, err := core.Login("carol", "thepassword")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != AccountLocked {
		t.Fatalf("expected AccountLocked after 3 failures, got %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	result, err := core.Login("carol", "thepassword")
	if err != nil {
		t.Fatalf("expected login to succeed after lockout expires: %v", err)
	}
	if result.User.Username != "carol" {
		t.Errorf("User.Username = %q, want carol", result.User.Username)
	}
}

// TestLogoutAllSessions covers scenario 6: five sessions for one user are
// all invalidated by LogoutAll, while a sixth user's session is
// untouched.
func TestLogoutAllSessions(t *testing.T) {
	core, um := newTestCore(t)
	if _, err := um.AddUser("dave", "password1", "Dave", "", "", ""); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if _, err := um.AddUser("erin", "password2", "Erin", "", "", ""); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	var tokens []string
	for i := 0; i < 5; i++ {
		result, err := core.Login("dave", "password1")
		if err != nil {
			t.Fatalf("Login dave #%d: %v", i, err)
		}
		tokens = append(tokens, result.SessionToken)
	}

	otherResult, err := core.Login("erin", "password2")
	if err != nil {
		t.Fatalf("Login erin: %v", err)
	}

	daveID := 0
	if u, ok := um.GetUser("dave"); ok {
		daveID = u.ID
	}

	count := core.LogoutAll(daveID)
	if count != 5 {
		t.Errorf("LogoutAll returned %d, want 5", count)
	}

	for i, tok := range tokens {
		if _, err := core.Validate(tok); err == nil {
			t.Errorf("token %d: expected session to be invalid after LogoutAll", i)
		}
	}

	if _, err := core.Validate(otherResult.SessionToken); err != nil {
		t.Errorf("erin's session should remain valid, got %v", err)
	}
}

func TestLogoutDoubleLogoutReturnsSessionNotFound(t *testing.T) {
	core, um := newTestCore(t)
	if _, err := um.AddUser("frank", "password", "Frank", "", "", ""); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	result, err := core.Login("frank", "password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := core.Logout(result.SessionToken); err != nil {
		t.Fatalf("first logout: %v", err)
	}

	err = core.Logout(result.SessionToken)
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != SessionNotFound {
		t.Fatalf("expected SessionNotFound on double logout, got %v", err)
	}
}
