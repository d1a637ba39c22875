package api

import (
	"net/http"
	"time"

	"opsauth/internal/adapters/api/middleware"
	"opsauth/internal/application/auth"
	"opsauth/internal/infrastructure/session"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware

	_ "opsauth/docs" // swagger docs
)

// Handler handles HTTP requests for the authentication API
type Handler struct {
	authService *auth.Service
	sessions    *session.Manager
	startedAt   time.Time
}

// NewHandler creates a new API handler
func NewHandler(authService *auth.Service, sessions *session.Manager) *Handler {
	return &Handler{
		authService: authService,
		sessions:    sessions,
		startedAt:   time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	requireAuth := middleware.RequireAuth(h.authService, h.sessions)

	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", h.Login)
			authRoutes.POST("/logout", h.Logout)
			authRoutes.GET("/me", h.Me)
			authRoutes.GET("/policy", requireAuth, middleware.RequireAdmin(), h.GetPolicy)
		}

		api.GET("/health/backend", requireAuth, h.BackendHealth)
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// HealthResponse is the liveness report of this service
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// Health godoc
//
//	@Summary		Service liveness
//	@Description	Reports that the authentication service is running
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

// BackendHealth godoc
//
//	@Summary		Dependent backend health
//	@Description	Checks the health of the dependent backend API (session required)
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		401	{object}	middleware.ErrorResponse
//	@Failure		503	{object}	map[string]any
//	@Router			/api/health/backend [get]
func (h *Handler) BackendHealth(c *gin.Context) {
	status := h.authService.BackendHealth(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
