package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rrepohub/rrepohub-backend/auth"
)

// UserIDKey is the gin context key holding the authenticated uuid.UUID.
const UserIDKey = "userID"

// SessionUserKey is the cookie-session key set after federated sign-in.
const SessionUserKey = "user_id"

// TokenValidator is satisfied by *auth.TokenIssuer.
type TokenValidator interface {
	ValidateToken(tokenStr, wantType string) (string, error)
}

// AuthOptional attaches the caller's identity when a valid bearer token or
// session is present and otherwise lets the request through anonymously.
func AuthOptional(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, ok := identify(c, tokens); ok {
			c.Set(UserIDKey, uid)
		}
		c.Next()
	}
}

// AuthRequired rejects requests without a valid identity.
func AuthRequired(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := identify(c, tokens)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

func identify(c *gin.Context, tokens TokenValidator) (uuid.UUID, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return uuid.Nil, false
		}
		sub, err := tokens.ValidateToken(parts[1], auth.TypeAccess)
		if err != nil {
			return uuid.Nil, false
		}
		uid, err := uuid.Parse(sub)
		return uid, err == nil
	}

	// Browser sessions created by the OAuth callback.
	if _, exists := c.Get(sessions.DefaultKey); !exists {
		return uuid.Nil, false
	}
	raw, ok := sessions.Default(c).Get(SessionUserKey).(string)
	if !ok {
		return uuid.Nil, false
	}
	uid, err := uuid.Parse(raw)
	return uid, err == nil
}

// UserID returns the identity set by AuthOptional or AuthRequired.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	uid, ok := v.(uuid.UUID)
	return uid, ok
}
