package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rrepohub/rrepohub-backend/auth/middleware"
)

func RegisterFileRoutes(api *gin.RouterGroup, cfg Config) {
	h := cfg.Handler

	api.GET("/files", h.ListFiles)
	api.GET("/files/:id", h.GetFile)
	api.GET("/files/:id/qr", h.FileQR)
	api.GET("/highlights", h.Highlights)
	api.GET("/recent", h.Recent)

	api.GET("/download/:id", middleware.AuthOptional(cfg.Tokens), h.DownloadFile)
	api.POST("/upload", middleware.AuthRequired(cfg.Tokens), h.UploadFile)
}
