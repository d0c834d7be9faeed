package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rrepohub/rrepohub-backend/auth/middleware"
	"github.com/rrepohub/rrepohub-backend/catalog"
	"github.com/rrepohub/rrepohub-backend/models"
	"github.com/rrepohub/rrepohub-backend/store"
	"github.com/rrepohub/rrepohub-backend/validation"
)

// userScanLimit caps how many profiles a username search looks at.
const userScanLimit = 100

// SearchUsers matches ?username= against usernames case-insensitively.
func (h *Handler) SearchUsers(c *gin.Context) {
	term := c.Query("username")
	if strings.TrimSpace(term) == "" {
		c.JSON(http.StatusOK, []models.Profile{})
		return
	}

	users, err := h.profiles.List(c.Request.Context(), userScanLimit)
	if err != nil {
		h.internalError(c, "Failed to search users", err)
		return
	}
	matches := catalog.SearchUsers(users, term)
	out := make([]models.Profile, 0, len(matches))
	for i := range matches {
		out = append(out, matches[i].Profile())
	}
	c.JSON(http.StatusOK, out)
}

// UserProfile returns a user's public profile and everything they uploaded.
func (h *Handler) UserProfile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.profiles.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to fetch profile", err)
		return
	}

	files, err := h.files.List(ctx, store.FileQuery{UploaderID: &id})
	if err != nil {
		h.internalError(c, "Failed to fetch files", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile": user.Profile(),
		"files":   catalog.ByUploader(files, id),
	})
}

type account struct {
	models.Profile
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

func accountOf(u *models.User) account {
	return account{Profile: u.Profile(), Email: u.Email, EmailVerified: u.EmailVerified}
}

// Me returns the signed-in account.
func (h *Handler) Me(c *gin.Context) {
	uid, _ := middleware.UserID(c)
	user, err := h.profiles.Get(c.Request.Context(), uid)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to fetch profile", err)
		return
	}
	c.JSON(http.StatusOK, accountOf(user))
}

type profilePatch struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// UpdateProfile merges the supplied fields into the caller's profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	uid, _ := middleware.UserID(c)

	var body profilePatch
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if body.Username != nil {
		if err := validation.ValidateUsername(*body.Username); err != nil {
			respondValidation(c, err)
			return
		}
	}
	upd := store.ProfileUpdate{
		Username:  trimmed(body.Username),
		FirstName: trimmed(body.FirstName),
		LastName:  trimmed(body.LastName),
	}

	user, err := h.profiles.Merge(c.Request.Context(), uid, upd)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to update profile.", err)
		return
	}
	c.JSON(http.StatusOK, accountOf(user))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func respondValidation(c *gin.Context, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "field": verr.Field, "error": verr.Message})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}
