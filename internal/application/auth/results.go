package auth

import "opsauth/internal/domain/auth"

// User-facing messages. They never carry token material.
const (
	msgServiceUnavailable  = "Service temporarily unavailable"
	msgBackendUnreachable  = "The backend API is unavailable. Please try again later."
	msgAuthUnavailable     = "Authentication service unavailable"
	msgMissingToken        = "Missing token"
	msgInvalidToken        = "Invalid token"
	msgTokenExpired        = "Token expired"
	msgEmailRequired       = "Email required for authentication"
	msgAccessRestricted    = "Access restricted. Only approved %s addresses are allowed."
	msgNoSessionCookie     = "No session cookie found"
	msgSessionExpired      = "Session expired"
	msgInvalidSessionToken = "Invalid session token"
	msgLogoutSuccessful    = "Logout successful"
	msgLogoutFailed        = "Error during logout"
)

// LoginResult is the outcome of Login and CurrentUser
type LoginResult struct {
	Success bool           `json:"success"`
	User    *auth.AuthUser `json:"user,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    auth.ErrorCode `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// LogoutResult is the outcome of Logout
type LogoutResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SessionValidationResult is the outcome of ValidateSession
type SessionValidationResult struct {
	IsValid      bool
	User         *auth.AuthUser
	ErrorCode    auth.ErrorCode
	ErrorMessage string
}

func loginFailure(code auth.ErrorCode, message string, details map[string]any) *LoginResult {
	return &LoginResult{Error: message, Code: code, Details: details}
}

func invalidSession(code auth.ErrorCode, message string) *SessionValidationResult {
	return &SessionValidationResult{ErrorCode: code, ErrorMessage: message}
}
