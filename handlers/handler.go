package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rrepohub/rrepohub-backend/auth"
	"github.com/rrepohub/rrepohub-backend/models"
	"github.com/rrepohub/rrepohub-backend/services"
	"github.com/rrepohub/rrepohub-backend/store"
)

type FileLister interface {
	List(ctx context.Context, q store.FileQuery) ([]models.File, error)
	Count(ctx context.Context) (int64, error)
}

type ProfileStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, limit int) ([]models.User, error)
	Merge(ctx context.Context, id uuid.UUID, upd store.ProfileUpdate) (*models.User, error)
	Count(ctx context.Context) (int64, error)
}

type Options struct {
	// BaseURL is the browser front end, used for redirects and share links.
	BaseURL        string
	MaxUploadBytes int64
	SecureCookies  bool
}

type Handler struct {
	files     FileLister
	profiles  ProfileStore
	identity  *auth.Identity
	tokens    *auth.TokenIssuer
	uploads   *services.Uploads
	downloads *services.Downloads
	cache     *services.FileCache
	opts      Options
	log       *zap.Logger
}

type Deps struct {
	Files     FileLister
	Profiles  ProfileStore
	Identity  *auth.Identity
	Tokens    *auth.TokenIssuer
	Uploads   *services.Uploads
	Downloads *services.Downloads
	Cache     *services.FileCache
	Log       *zap.Logger
}

func New(d Deps, opts Options) *Handler {
	return &Handler{
		files:     d.Files,
		profiles:  d.Profiles,
		identity:  d.Identity,
		tokens:    d.Tokens,
		uploads:   d.Uploads,
		downloads: d.Downloads,
		cache:     d.Cache,
		opts:      opts,
		log:       d.Log,
	}
}

// internalError logs err and replies with a generic message.
func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.log.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	return id, err == nil
}
