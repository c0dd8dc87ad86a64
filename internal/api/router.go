package api

import (
	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/studydesk/internal/api/middleware"
	"github.com/liliang-cn/studydesk/internal/api/study"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(handler *study.Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Study API (requires API key when one is configured)
	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.Auth(cfg.APIKey))
	handler.RegisterRoutes(apiGroup)

	return r
}
