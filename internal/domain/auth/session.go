package auth

import "time"

// SessionCookieName is the name of the session credential cookie
const SessionCookieName = "session"

// DefaultSessionMaxAge is the lifetime of a session credential
const DefaultSessionMaxAge = 7 * 24 * time.Hour

// CreateOptions overrides the session cookie defaults for one session
type CreateOptions struct {
	MaxAge      time.Duration // Zero keeps the configured max age
	ForceSecure bool          // Set the Secure flag outside production
}

// SessionStore holds the session credential of a single client context
type SessionStore interface {
	// Token returns the stored credential, if any
	Token() (string, bool)

	// Create stores the credential, replacing any previous one
	Create(token string, opts CreateOptions) error

	// Clear removes the credential. Clearing an empty store is a no-op.
	Clear() error
}
