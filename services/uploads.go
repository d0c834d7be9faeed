// Package services coordinates the stores for multi-step operations:
// uploads, downloads and cached reads.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/rrepohub/rrepohub-backend/auth"
	"github.com/rrepohub/rrepohub-backend/blob"
	"github.com/rrepohub/rrepohub-backend/catalog"
	"github.com/rrepohub/rrepohub-backend/models"
)

var ErrInvalidUpload = errors.New("invalid upload")

// compensateTimeout bounds each cleanup step after a failed record write.
const compensateTimeout = 30 * time.Second

var uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rrepohub_uploads_total",
	Help: "Completed uploads by kind (file or link).",
}, []string{"kind"})

type FileWriter interface {
	Create(ctx context.Context, f *models.File) error
}

type OrphanRecorder interface {
	Add(ctx context.Context, key, reason string) error
}

// Uploader identifies who is uploading.
type Uploader struct {
	ID    uuid.UUID
	Email string
}

// UploadMeta is the form data shared by file and link uploads.
type UploadMeta struct {
	Name        string
	Category    string
	Type        string
	Description string
}

// Content is the bytes of a file upload.
type Content struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Uploads struct {
	files   FileWriter
	blobs   blob.Store
	orphans OrphanRecorder
	log     *zap.Logger

	cleanupTimeout time.Duration
}

func NewUploads(files FileWriter, blobs blob.Store, orphans OrphanRecorder, log *zap.Logger) *Uploads {
	return &Uploads{files: files, blobs: blobs, orphans: orphans, log: log, cleanupTimeout: compensateTimeout}
}

// UploadFile stores the bytes first and then the record. If the record
// write fails the blob is deleted again; if that fails too the key is
// queued for the cleanup job.
func (s *Uploads) UploadFile(ctx context.Context, who Uploader, meta UploadMeta, content Content) (*models.File, error) {
	meta, err := normalizeMeta(meta)
	if err != nil {
		return nil, err
	}
	if content.Body == nil {
		return nil, fmt.Errorf("%w: please select a file", ErrInvalidUpload)
	}

	key := blob.NewKey(content.Filename)
	downloadURL, err := s.blobs.Put(ctx, key, content.Body, content.Size, content.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	f := newRecord(who, meta)
	f.Size = catalog.FormatSize(content.Size)
	f.DownloadURL = downloadURL
	f.StorageKey = key

	if err := s.files.Create(ctx, f); err != nil {
		s.compensate(key, err)
		return nil, err
	}
	uploadsTotal.WithLabelValues("file").Inc()
	return f, nil
}

// UploadLink records an externally hosted file. No bytes are stored.
func (s *Uploads) UploadLink(ctx context.Context, who Uploader, meta UploadMeta, link string) (*models.File, error) {
	meta, err := normalizeMeta(meta)
	if err != nil {
		return nil, err
	}
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if link == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: please enter a valid URL", ErrInvalidUpload)
	}

	f := newRecord(who, meta)
	f.Size = catalog.ExternalSize
	f.DownloadURL = link
	f.IsExternalLink = true

	if err := s.files.Create(ctx, f); err != nil {
		return nil, err
	}
	uploadsTotal.WithLabelValues("link").Inc()
	return f, nil
}

// compensate runs detached from the request context, which may already be
// cancelled, but each step is bounded by cleanupTimeout.
func (s *Uploads) compensate(key string, cause error) {
	log := s.log.With(zap.String("key", key), zap.NamedError("cause", cause))

	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	err := s.blobs.Delete(ctx, key)
	cancel()
	if err == nil {
		log.Warn("record write failed, blob removed")
		return
	}
	log.Error("record write failed and blob removal failed", zap.Error(err))

	ctx, cancel = context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()
	if err := s.orphans.Add(ctx, key, err.Error()); err != nil {
		log.Error("could not queue orphaned blob", zap.Error(err))
	}
}

func newRecord(who Uploader, meta UploadMeta) *models.File {
	uid := who.ID
	return &models.File{
		Name:        meta.Name,
		Category:    meta.Category,
		Type:        meta.Type,
		Description: meta.Description,
		Uploader:    auth.DisplayName(who.Email),
		UploaderID:  &uid,
		Downloads:   0,
	}
}

func normalizeMeta(meta UploadMeta) (UploadMeta, error) {
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Type = strings.TrimSpace(meta.Type)
	meta.Description = strings.TrimSpace(meta.Description)
	if meta.Name == "" {
		return meta, fmt.Errorf("%w: name is required", ErrInvalidUpload)
	}
	if !catalog.IsCategory(meta.Category) {
		return meta, fmt.Errorf("%w: unknown category %q", ErrInvalidUpload, meta.Category)
	}
	if meta.Type == "" {
		meta.Type = "zip"
	}
	return meta, nil
}
