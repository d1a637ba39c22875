package auth

import (
	"context"
	"time"
)

// TokenVerifier verifies identity tokens issued by the identity provider
type TokenVerifier interface {
	// Available reports whether the verifier can currently verify tokens
	Available(ctx context.Context) error

	// Verify checks the token signature, audience and validity window.
	// Failures are returned as *VerifyError.
	Verify(ctx context.Context, token string) (*DecodedClaims, error)
}

// IdentityDirectory is the identity provider's user store
type IdentityDirectory interface {
	// GetCustomClaims retrieves the custom authorization claims of a subject
	GetCustomClaims(ctx context.Context, subjectID string) (map[string]any, error)

	// DeleteIdentity deletes a subject from the provider
	DeleteIdentity(ctx context.Context, subjectID string) error
}

// HealthStatus is the health report of the dependent backend
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Status    string        `json:"status,omitempty"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
	Latency   time.Duration `json:"latency"`
}

// HealthChecker checks the dependent backend service
type HealthChecker interface {
	CheckHealth(ctx context.Context) (*HealthStatus, error)
}

// Identity is a subject known to the identity directory
type Identity struct {
	SubjectID    string         `json:"id"`
	Email        string         `json:"email"`
	CustomClaims map[string]any `json:"customClaims"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// IdentityAdmin manages identities on behalf of operators
type IdentityAdmin interface {
	IdentityDirectory

	// GetIdentity retrieves a subject, or ErrIdentityNotFound
	GetIdentity(ctx context.Context, subjectID string) (*Identity, error)

	// SetCustomClaims creates the subject if needed and replaces its custom claims
	SetCustomClaims(ctx context.Context, subjectID, email string, claims map[string]any) error
}
