package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rrepohub/rrepohub-backend/auth/middleware"
)

func RegisterUserRoutes(api *gin.RouterGroup, cfg Config) {
	h := cfg.Handler

	api.GET("/users", h.SearchUsers)
	api.GET("/users/:id", h.UserProfile)

	profile := api.Group("/profile", middleware.AuthRequired(cfg.Tokens))
	profile.GET("", h.Me)
	profile.PATCH("", h.UpdateProfile)
}
