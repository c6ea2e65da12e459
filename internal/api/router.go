package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lawgic-ai/docqa/internal/api/middleware"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	UploadsDir   string
}

// SetupRouter sets up the Gin router
func SetupRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", h.Health)

	// Persisted uploads, referenced by pdf_url in upload responses
	r.Static("/uploads", cfg.UploadsDir)

	// Public API
	apiGroup := r.Group("/api")
	h.RegisterRoutes(apiGroup)

	// Admin API (optional API key; open when no key is configured)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	h.RegisterAdminRoutes(adminGroup)

	return r
}
