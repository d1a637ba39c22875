package api

import (
	"net/http"
	"strings"

	"opsauth/internal/adapters/api/middleware"
	domainAuth "opsauth/internal/domain/auth"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	msgInvalidBody = "Invalid request body"
	msgServerError = "Server error"
)

// LoginRequest carries the identity token obtained by the client
type LoginRequest struct {
	IDToken string `json:"idToken"`
}

// PolicyResponse describes the active email policy
type PolicyResponse struct {
	Policy           string   `json:"policy"`
	AllowedDomains   []string `json:"allowedDomains"`
	AllowlistEnabled bool     `json:"allowlistEnabled"`
}

// Login godoc
//
//	@Summary		Log in with an identity token
//	@Description	Verifies the identity token, enforces the email policy and sets the session cookie
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Login request"
//	@Success		200		{object}	auth.LoginResult
//	@Failure		400		{object}	middleware.ErrorResponse
//	@Failure		401		{object}	auth.LoginResult
//	@Failure		403		{object}	auth.LoginResult
//	@Failure		503		{object}	auth.LoginResult
//	@Router			/api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAuthError(c, http.StatusBadRequest, msgInvalidBody, "", nil)
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		writeAuthError(c, http.StatusBadRequest, "Missing token", "", nil)
		return
	}

	store := h.sessions.Bind(c.Writer, c.Request)
	result, err := h.authService.Login(c.Request.Context(), store, req.IDToken)
	if err != nil {
		log.Error().Err(err).Msg("login failed")
		writeAuthError(c, http.StatusInternalServerError, msgServerError, "", nil)
		return
	}
	if !result.Success {
		c.JSON(statusForCode(result.Code), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Clears the session cookie
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	auth.LogoutResult
//	@Failure		500	{object}	auth.LogoutResult
//	@Router			/api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	store := h.sessions.Bind(c.Writer, c.Request)
	result := h.authService.Logout(c.Request.Context(), store)
	if !result.Success {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me godoc
//
//	@Summary		Current user
//	@Description	Returns the user of the current session
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	auth.LoginResult
//	@Failure		401	{object}	auth.LoginResult
//	@Failure		503	{object}	auth.LoginResult
//	@Router			/api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	store := h.sessions.Bind(c.Writer, c.Request)
	result := h.authService.CurrentUser(c.Request.Context(), store)
	if !result.Success {
		c.JSON(statusForCode(result.Code), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPolicy godoc
//
//	@Summary		Email policy
//	@Description	Returns the active email policy (admin only)
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	PolicyResponse
//	@Failure		401	{object}	middleware.ErrorResponse
//	@Failure		403	{object}	middleware.ErrorResponse
//	@Router			/api/auth/policy [get]
func (h *Handler) GetPolicy(c *gin.Context) {
	policy := h.authService.Policy()
	c.JSON(http.StatusOK, PolicyResponse{
		Policy:           domainAuth.PolicyName,
		AllowedDomains:   policy.AllowedDomains(),
		AllowlistEnabled: policy.AllowlistEnabled(),
	})
}

// statusForCode maps a result code to its HTTP status
func statusForCode(code domainAuth.ErrorCode) int {
	switch {
	case code.IsUnavailable():
		return http.StatusServiceUnavailable
	case code.IsPolicyRejection():
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func writeAuthError(c *gin.Context, status int, message string, code domainAuth.ErrorCode, details map[string]any) {
	c.JSON(status, middleware.ErrorResponse{Error: message, Code: code, Details: details})
}
