package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"opsauth/internal/domain/auth"
)

// IdentityDirectory is an in-memory implementation of the identity directory
type IdentityDirectory struct {
	mu         sync.RWMutex
	identities map[string]*auth.Identity // subjectID -> Identity
}

var _ auth.IdentityAdmin = (*IdentityDirectory)(nil)

// NewIdentityDirectory creates a new in-memory identity directory
func NewIdentityDirectory() *IdentityDirectory {
	return &IdentityDirectory{
		identities: make(map[string]*auth.Identity),
	}
}

// GetCustomClaims returns a copy of the subject's custom claims.
// Unknown subjects have no custom claims.
func (d *IdentityDirectory) GetCustomClaims(ctx context.Context, subjectID string) (map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	identity, exists := d.identities[subjectID]
	if !exists {
		return map[string]any{}, nil
	}
	return copyClaims(identity.CustomClaims), nil
}

// GetIdentity retrieves a subject by ID
func (d *IdentityDirectory) GetIdentity(ctx context.Context, subjectID string) (*auth.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	identity, exists := d.identities[subjectID]
	if !exists {
		return nil, fmt.Errorf("identity %s: %w", subjectID, auth.ErrIdentityNotFound)
	}
	out := *identity
	out.CustomClaims = copyClaims(identity.CustomClaims)
	return &out, nil
}

// SetCustomClaims creates the subject if needed and replaces its custom claims
func (d *IdentityDirectory) SetCustomClaims(ctx context.Context, subjectID, email string, claims map[string]any) error {
	if subjectID == "" {
		return fmt.Errorf("subject ID is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	identity, exists := d.identities[subjectID]
	if !exists {
		identity = &auth.Identity{SubjectID: subjectID}
		d.identities[subjectID] = identity
	}
	if email != "" {
		identity.Email = auth.NormalizeEmail(email)
	}
	identity.CustomClaims = copyClaims(claims)
	identity.UpdatedAt = time.Now()
	return nil
}

// DeleteIdentity removes a subject
func (d *IdentityDirectory) DeleteIdentity(ctx context.Context, subjectID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.identities[subjectID]; !exists {
		return fmt.Errorf("identity %s: %w", subjectID, auth.ErrIdentityNotFound)
	}
	delete(d.identities, subjectID)
	return nil
}

func copyClaims(claims map[string]any) map[string]any {
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out
}
