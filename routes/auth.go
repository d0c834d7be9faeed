package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rrepohub/rrepohub-backend/auth/middleware"
)

func RegisterAuthRoutes(r *gin.Engine, api *gin.RouterGroup, cfg Config) {
	h := cfg.Handler

	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	api.POST("/refresh-token", h.RefreshToken)
	api.GET("/auth/verify", h.VerifyEmail)
	api.POST("/auth/resend-verification", h.ResendVerification)
	api.GET("/me", middleware.AuthRequired(cfg.Tokens), h.Me)

	if cfg.OAuth != nil {
		r.GET("/auth/:provider", cfg.OAuth.Begin)
		r.GET("/auth/:provider/callback", cfg.OAuth.Complete)
	}
}
