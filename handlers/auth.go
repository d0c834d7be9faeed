package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rrepohub/rrepohub-backend/auth"
	"github.com/rrepohub/rrepohub-backend/auth/middleware"
	"github.com/rrepohub/rrepohub-backend/models"
	"github.com/rrepohub/rrepohub-backend/store"
	"github.com/rrepohub/rrepohub-backend/validation"
)

const (
	RefreshCookie     = "refresh_token"
	refreshCookiePath = "/api/refresh-token"
)

func (h *Handler) Register(c *gin.Context) {
	var in auth.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid input"})
		return
	}

	user, err := h.identity.Register(c.Request.Context(), in)
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		respondValidation(c, err)
		return
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "User already exists. Please sign in"})
		return
	case err != nil:
		h.internalError(c, "Registration failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "We have sent you a verification email to " + user.Email + ". Please verify it and log in.",
		"user":    user.Profile(),
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid input"})
		return
	}

	user, err := h.identity.Login(c.Request.Context(), body.Email, body.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return
	case errors.Is(err, auth.ErrEmailNotVerified):
		h.clearSession(c)
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": auth.ErrEmailNotVerified.Error()})
		return
	case err != nil:
		h.internalError(c, "Login failed", err)
		return
	}

	h.issueSession(c, user)
}

// issueSession answers with an access token and sets the refresh cookie.
func (h *Handler) issueSession(c *gin.Context, user *models.User) {
	access, refresh, err := h.tokens.GenerateTokens(user.ID.String())
	if err != nil {
		h.internalError(c, "Failed to generate tokens", err)
		return
	}
	SetRefreshCookie(c, refresh, int(h.tokens.RefreshTTL().Seconds()), h.opts.SecureCookies)
	c.JSON(http.StatusOK, gin.H{"success": true, "token": access, "user": accountOf(user)})
}

func (h *Handler) Logout(c *gin.Context) {
	SetRefreshCookie(c, "", -1, h.opts.SecureCookies)
	h.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RefreshToken trades the refresh cookie for a new access token.
func (h *Handler) RefreshToken(c *gin.Context) {
	raw, err := c.Cookie(RefreshCookie)
	if err != nil || raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	sub, err := h.tokens.ValidateToken(raw, auth.TypeRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	uid, err := uuid.Parse(sub)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if _, err := h.profiles.Get(c.Request.Context(), uid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		h.internalError(c, "Failed to refresh token", err)
		return
	}

	access, err := h.tokens.GenerateAccessToken(sub)
	if err != nil {
		h.internalError(c, "Failed to generate tokens", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": access})
}

// VerifyEmail is the target of the emailed link. It redirects the browser
// to the login page either way.
func (h *Handler) VerifyEmail(c *gin.Context) {
	base := strings.TrimRight(h.opts.BaseURL, "/")
	_, err := h.identity.VerifyEmail(c.Request.Context(), c.Query("token"))
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		c.Redirect(http.StatusSeeOther, base+"/verify-email?error=invalid_token")
	case err != nil:
		h.internalError(c, "Verification failed", err)
	default:
		c.Redirect(http.StatusSeeOther, base+"/login?verified=1")
	}
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	// The answer never depends on the account or the mail server, so it
	// reveals nothing about which addresses are registered.
	if err := h.identity.ResendVerification(c.Request.Context(), body.Email); err != nil {
		h.log.Error("failed to resend verification email", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetRefreshCookie writes (or with maxAge < 0 clears) the refresh token
// cookie.
func SetRefreshCookie(c *gin.Context, value string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookie, value, maxAge, refreshCookiePath, "", secure, true)
}

func (h *Handler) clearSession(c *gin.Context) {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return
	}
	s := sessions.Default(c)
	s.Delete(middleware.SessionUserKey)
	if err := s.Save(); err != nil {
		h.log.Warn("failed to clear session")
	}
}
