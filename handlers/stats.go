package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rrepohub/rrepohub-backend/catalog"
	"github.com/rrepohub/rrepohub-backend/store"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.profiles.Count(ctx)
	if err != nil {
		h.internalError(c, "Failed to fetch stats", err)
		return
	}
	files, err := h.files.Count(ctx)
	if err != nil {
		h.internalError(c, "Failed to fetch stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userCount": users, "fileCount": files})
}

// Highlights scans the whole catalog for totals and extremes.
func (h *Handler) Highlights(c *gin.Context) {
	files, err := h.files.List(c.Request.Context(), store.FileQuery{})
	if err != nil {
		h.internalError(c, "Failed to fetch highlights", err)
		return
	}
	c.JSON(http.StatusOK, catalog.ComputeHighlights(files))
}

func (h *Handler) Recent(c *gin.Context) {
	files, err := h.files.List(c.Request.Context(), store.FileQuery{Limit: catalog.RecentLimit})
	if err != nil {
		h.internalError(c, "Failed to fetch recent uploads", err)
		return
	}
	c.JSON(http.StatusOK, catalog.Recent(files, catalog.RecentLimit))
}
