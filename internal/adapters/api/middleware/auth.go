package middleware

import (
	"context"
	"net/http"

	appauth "opsauth/internal/application/auth"
	domainAuth "opsauth/internal/domain/auth"
	"opsauth/internal/infrastructure/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	// UserContextKey is the key used to store user in gin context
	UserContextKey = "user"
)

// Authenticator resolves the user behind a session
type Authenticator interface {
	RequireAuth(ctx context.Context, store domainAuth.SessionStore) *appauth.LoginResult
}

// ErrorResponse is the JSON body of every authentication failure
type ErrorResponse struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error"`
	Code    domainAuth.ErrorCode `json:"code,omitempty"`
	Details map[string]any       `json:"details,omitempty"`
}

// AbortWithError writes an authentication error and stops the chain
func AbortWithError(c *gin.Context, status int, message string, code domainAuth.ErrorCode, details map[string]any) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code, Details: details})
}

// RequireAuth is a middleware that requires a valid session cookie.
// Failed validations clear the cookie through the session manager.
func RequireAuth(authenticator Authenticator, sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := sessions.Bind(c.Writer, c.Request)
		result := authenticator.RequireAuth(c.Request.Context(), store)
		if !result.Success {
			status := http.StatusUnauthorized
			if result.Code == domainAuth.CodeAuthUnavailable {
				status = http.StatusServiceUnavailable
			}
			AbortWithError(c, status, result.Error, result.Code, nil)
			return
		}

		c.Set(UserContextKey, result.User)
		c.Next()
	}
}

// RequirePermissions is a middleware that requires every listed permission.
// Administrators hold every permission.
func RequirePermissions(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUserFromContext(c)
		if user == nil {
			AbortWithError(c, http.StatusUnauthorized, "user not found in context", domainAuth.CodeTokenInvalid, nil)
			return
		}

		for _, permission := range permissions {
			if !user.HasPermission(permission) {
				log.Warn().Str("uid", user.ID).Strs("required", permissions).Msg("insufficient permissions")
				AbortWithError(c, http.StatusForbidden, "Insufficient permissions", domainAuth.CodeInsufficientPermissions, map[string]any{
					"required":         permissions,
					"user_permissions": user.Permissions(),
				})
				return
			}
		}

		c.Next()
	}
}

// RequireRoles is a middleware that requires at least one of the listed roles
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUserFromContext(c)
		if user == nil {
			AbortWithError(c, http.StatusUnauthorized, "user not found in context", domainAuth.CodeTokenInvalid, nil)
			return
		}

		for _, role := range roles {
			if user.HasRole(role) {
				c.Next()
				return
			}
		}

		log.Warn().Str("uid", user.ID).Strs("required", roles).Msg("insufficient role")
		AbortWithError(c, http.StatusForbidden, "Insufficient role", domainAuth.CodeInsufficientRole, map[string]any{
			"required":   roles,
			"user_roles": user.Roles(),
		})
	}
}

// RequireAdmin is a middleware that requires the admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(domainAuth.RoleAdmin)
}

// GetUserFromContext retrieves the user from the gin context
func GetUserFromContext(c *gin.Context) *domainAuth.AuthUser {
	if user, exists := c.Get(UserContextKey); exists {
		if u, ok := user.(*domainAuth.AuthUser); ok {
			return u
		}
	}
	return nil
}
