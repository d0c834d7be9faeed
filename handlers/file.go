package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/rrepohub/rrepohub-backend/auth/middleware"
	"github.com/rrepohub/rrepohub-backend/catalog"
	"github.com/rrepohub/rrepohub-backend/models"
	"github.com/rrepohub/rrepohub-backend/services"
	"github.com/rrepohub/rrepohub-backend/store"
)

// ListFiles serves the browse view: newest first, filtered by search term
// and category.
func (h *Handler) ListFiles(c *gin.Context) {
	category, err := catalog.ParseSelector(c.Query("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	search := c.Query("search")

	// Only the category is pushed down. SQL LOWER folds less than Go does
	// outside ASCII, so the name match is left entirely to Filter.
	files, err := h.files.List(c.Request.Context(), store.FileQuery{Category: category})
	if err != nil {
		h.internalError(c, "Failed to fetch files", err)
		return
	}
	c.JSON(http.StatusOK, catalog.Filter(files, search, category))
}

func (h *Handler) GetFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	f, err := h.cache.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to fetch file", err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// FileQR renders a PNG QR code pointing at the file's details page.
func (h *Handler) FileQR(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if _, err := h.cache.Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		h.internalError(c, "Failed to fetch file", err)
		return
	}

	png, err := qrcode.Encode(strings.TrimRight(h.opts.BaseURL, "/")+"/details/"+id.String(), qrcode.Medium, 256)
	if err != nil {
		h.internalError(c, "Failed to render QR code", err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// UploadFile accepts a multipart form with either a file (uploadType=file)
// or an external URL (uploadType=link).
func (h *Handler) UploadFile(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	user, err := h.identity.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		h.internalError(c, "Upload failed", err)
		return
	}

	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload form"})
		return
	}

	who := services.Uploader{ID: user.ID, Email: user.Email}
	meta := services.UploadMeta{
		Name:        c.PostForm("name"),
		Category:    c.PostForm("category"),
		Type:        c.PostForm("type"),
		Description: c.PostForm("description"),
	}

	var uploaded *models.File
	var uploadErr error
	switch c.DefaultPostForm("uploadType", "file") {
	case "link":
		uploaded, uploadErr = h.uploads.UploadLink(c.Request.Context(), who, meta, c.PostForm("link"))
	case "file":
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please select a file"})
			return
		}
		src, err := fh.Open()
		if err != nil {
			h.internalError(c, "Upload failed", err)
			return
		}
		defer src.Close()
		uploaded, uploadErr = h.uploads.UploadFile(c.Request.Context(), who, meta, services.Content{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        src,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploadType must be file or link"})
		return
	}

	if uploadErr != nil {
		if errors.Is(uploadErr, services.ErrInvalidUpload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": uploadErr.Error()})
			return
		}
		h.internalError(c, "Upload failed", uploadErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": uploaded})
}

// DownloadFile counts a download and returns where to fetch the bytes.
func (h *Handler) DownloadFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found"})
		return
	}

	actor := services.Actor{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	if uid, ok := middleware.UserID(c); ok {
		actor.UserID = &uid
	}

	f, err := h.downloads.Record(c.Request.Context(), id, actor)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Download failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": f.DownloadURL})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
