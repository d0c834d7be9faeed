package Oauth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	gsessions "github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"go.uber.org/zap"

	"github.com/rrepohub/rrepohub-backend/auth"
	"github.com/rrepohub/rrepohub-backend/auth/middleware"
	"github.com/rrepohub/rrepohub-backend/handlers"
	"github.com/rrepohub/rrepohub-backend/models"
)

type GoogleCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// InitStore installs the gothic session store and the Google provider.
func InitStore(sessionSecret string, secure bool, creds GoogleCredentials) {
	store := gsessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store

	goth.UseProviders(google.New(creds.ClientID, creds.ClientSecret, creds.RedirectURL, "email", "profile"))
}

// SignIn interface is satisfied by *auth.Identity.
type SignIn interface {
	FederatedSignIn(ctx context.Context, fu auth.FederatedUser) (*models.User, error)
}

type Handler struct {
	identity      SignIn
	tokens        *auth.TokenIssuer
	baseURL       string
	secureCookies bool
	log           *zap.Logger
}

func NewHandler(identity SignIn, tokens *auth.TokenIssuer, baseURL string, secureCookies bool, log *zap.Logger) *Handler {
	return &Handler{
		identity:      identity,
		tokens:        tokens,
		baseURL:       strings.TrimRight(baseURL, "/"),
		secureCookies: secureCookies,
		log:           log,
	}
}

// Begin redirects the browser to the provider's consent page.
func (h *Handler) Begin(c *gin.Context) {
	withProvider(c)
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// Complete finishes the provider round trip, signs the user in and sends the
// browser back to the front end with an access token.
func (h *Handler) Complete(c *gin.Context) {
	withProvider(c)

	gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		h.log.Warn("oauth exchange failed", zap.String("provider", c.Param("provider")), zap.Error(err))
		h.fail(c, "oauth_failed")
		return
	}

	user, err := h.identity.FederatedSignIn(c.Request.Context(), federatedUser(gothUser))
	switch {
	case errors.Is(err, auth.ErrUnsupportedIdP):
		h.fail(c, "unsupported_provider")
		return
	case errors.Is(err, auth.ErrEmailNotVerified):
		h.fail(c, "email_not_verified")
		return
	case err != nil:
		h.log.Error("federated sign-in failed", zap.Error(err))
		h.fail(c, "server_error")
		return
	}

	access, refresh, err := h.tokens.GenerateTokens(user.ID.String())
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		h.fail(c, "server_error")
		return
	}
	handlers.SetRefreshCookie(c, refresh, int(h.tokens.RefreshTTL().Seconds()), h.secureCookies)

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID.String())
	if err := session.Save(); err != nil {
		// The bearer token still works without the session.
		h.log.Warn("session save failed", zap.Error(err))
	}

	h.log.Info("oauth sign-in", zap.String("provider", gothUser.Provider), zap.String("user_id", user.ID.String()))
	c.Redirect(http.StatusTemporaryRedirect, h.baseURL+"/auth/success?token="+url.QueryEscape(access))
}

func (h *Handler) fail(c *gin.Context, reason string) {
	c.Redirect(http.StatusTemporaryRedirect, h.baseURL+"/login?error="+url.QueryEscape(reason))
}

// goth looks the provider up in the query string.
func withProvider(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("provider", c.Param("provider"))
	c.Request.URL.RawQuery = q.Encode()
}

func federatedUser(u goth.User) auth.FederatedUser {
	return auth.FederatedUser{
		Provider:      u.Provider,
		UserID:        u.UserID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: emailVerified(u.RawData),
	}
}

// Google reports verification as verified_email (v2 userinfo) or
// email_verified (OIDC).
func emailVerified(raw map[string]interface{}) bool {
	for _, k := range []string{"verified_email", "email_verified"} {
		switch v := raw[k].(type) {
		case bool:
			return v
		case string:
			return v == "true"
		}
	}
	return false
}
