package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rrepohub/rrepohub-backend/auth/Oauth"
	"github.com/rrepohub/rrepohub-backend/auth/middleware"
	"github.com/rrepohub/rrepohub-backend/handlers"
)

type Config struct {
	Handler *handlers.Handler
	Tokens  middleware.TokenValidator
	// OAuth is nil when Google sign-in is not configured.
	OAuth *Oauth.Handler
	// UploadDir is served at /uploads when blobs live on local disk.
	UploadDir string
}

func Register(r *gin.Engine, cfg Config) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	api := r.Group("/api")
	api.GET("/health", cfg.Handler.Health)
	api.GET("/stats", cfg.Handler.Stats)

	RegisterAuthRoutes(r, api, cfg)
	RegisterFileRoutes(api, cfg)
	RegisterUserRoutes(api, cfg)
}
