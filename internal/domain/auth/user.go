package auth

import "slices"

// Role names carried in custom claims
const (
	RoleAdmin = "admin"

	claimRoles       = "roles"
	claimPermissions = "permissions"
)

// AuthUser represents the authenticated identity of the current request.
// It is rebuilt from the token on every login and session validation and is never persisted.
type AuthUser struct {
	ID            string         `json:"id"`            // Identity provider subject ID
	Email         string         `json:"email"`         // User email
	DisplayName   string         `json:"displayName"`   // Display name from the token
	PhotoURL      string         `json:"photoURL"`      // Avatar URL from the token
	EmailVerified bool           `json:"emailVerified"` // Email verification status
	CustomClaims  map[string]any `json:"customClaims"`  // Roles and permissions from the identity directory
}

// NewAuthUser builds an AuthUser from decoded claims and the custom claims of the subject
func NewAuthUser(claims *DecodedClaims, customClaims map[string]any) *AuthUser {
	if customClaims == nil {
		customClaims = map[string]any{}
	}
	return &AuthUser{
		ID:            claims.SubjectID,
		Email:         claims.Email,
		DisplayName:   claims.DisplayName,
		PhotoURL:      claims.PictureURL,
		EmailVerified: claims.EmailVerified,
		CustomClaims:  customClaims,
	}
}

// Roles returns the roles granted to the user
func (u *AuthUser) Roles() []string {
	if u == nil {
		return nil
	}
	return stringList(u.CustomClaims[claimRoles])
}

// Permissions returns the permissions granted to the user
func (u *AuthUser) Permissions() []string {
	if u == nil {
		return nil
	}
	return stringList(u.CustomClaims[claimPermissions])
}

// IsAdmin checks if the user holds the admin role
func (u *AuthUser) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// HasPermission checks if the user has a permission.
// The admin role implies every permission.
func (u *AuthUser) HasPermission(permission string) bool {
	if slices.Contains(u.Permissions(), permission) {
		return true
	}
	return u.IsAdmin()
}

// HasRole checks if the user has a role
func (u *AuthUser) HasRole(role string) bool {
	return slices.Contains(u.Roles(), role)
}

// stringList reads a claim that may have been decoded from JSON ([]any) or set natively ([]string)
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
