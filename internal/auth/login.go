package auth

import (
	"regexp"

	"github.com/stlalpha/impulse-bbs/internal/user"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,25}$`)

// ValidateUsername enforces the format rules login applies before ever
// touching rate limiting, lockout, or storage: 3-25 characters, letters,
// digits and underscores only.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return newError(ValidationFailed, "username must be 3-25 characters of letters, numbers, and underscores")
	}
	return nil
}

// UserLookup is the capability Login needs from a user store: look a
// username up by name and persist a rehashed password. Narrowed from
// internal/user.UserMgr's full CRUD surface to keep Login testable
// against a fake.
type UserLookup interface {
	GetUser(username string) (*user.User, bool)
	UpdateUser(u *user.User) error
}

// Core bundles the components the login flow orchestrates.
type Core struct {
	Users        UserLookup
	RateLimiter  *RateLimiter
	Lockout      *LockoutManager
	Sessions     *SessionStore
	LeakAttempts bool // if false (default), attempts_remaining is never surfaced
}

// LoginResult is the outcome of a login attempt.
type LoginResult struct {
	User         *user.User
	SessionToken string
}

// Login orchestrates username validation, rate limiting, lockout check,
// password verify, and session creation, in that order.
// Auth errors never leak whether a username exists: an unknown username
// and a wrong password both return InvalidCredentials.
func (c *Core) Login(username, password string) (*LoginResult, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	if err := c.RateLimiter.Check(username); err != nil {
		return nil, err
	}

	if err := c.Lockout.Check(username); err != nil {
		return nil, err
	}

	u, exists := c.Users.GetUser(username)
	if !exists {
		c.RateLimiter.RecordAttempt(username)
		c.Lockout.RecordFailure(username)
		return nil, c.invalidCredentials(username)
	}

	ok, needsRehash := VerifyPassword(password, u.PasswordHash)
	if !ok {
		c.RateLimiter.RecordAttempt(username)
		c.Lockout.RecordFailure(username)
		return nil, c.invalidCredentials(username)
	}

	c.RateLimiter.RecordAttempt(username)
	c.Lockout.Clear(username)

	if needsRehash {
		if newHash, err := HashPassword(password); err == nil {
			u.PasswordHash = newHash
			_ = c.Users.UpdateUser(u)
		}
	}

	token := c.Sessions.Create(u.ID)
	return &LoginResult{User: u, SessionToken: token}, nil
}

// invalidCredentials builds the InvalidCredentials error returned for both
// an unknown username and a wrong password, so the two are
// indistinguishable to the caller. AttemptsRemaining is surfaced only if
// LeakAttempts is set; otherwise it stays nil to avoid exposing lockout
// policy to a potential attacker.
func (c *Core) invalidCredentials(username string) error {
	err := &AuthError{Kind: InvalidCredentials}
	if c.LeakAttempts {
		remaining := c.Lockout.cfg.MaxFailures - c.Lockout.failuresLocked(username)
		if remaining < 0 {
			remaining = 0
		}
		err.AttemptsRemaining = &remaining
	}
	return err
}
