package auth

// Logout invalidates a single session token. Returns SessionNotFound if
// the token was not present, covering both an unknown token and a double
// logout of the same token.
func (c *Core) Logout(token string) error {
	if !c.Sessions.Logout(token) {
		return &AuthError{Kind: SessionNotFound}
	}
	return nil
}

// LogoutAll invalidates every session belonging to userID and returns the
// count removed. Used for admin force-logout, password change, and
// account suspension.
func (c *Core) LogoutAll(userID int) int {
	return c.Sessions.LogoutAll(userID)
}

// Validate returns the user id for token, refreshing its last-activity
// timestamp, or a SessionNotFound/SessionExpired error.
func (c *Core) Validate(token string) (int, error) {
	return c.Sessions.Validate(token)
}
